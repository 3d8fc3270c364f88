// Package domain contains core domain types for the ShikshAq chat service.
package domain

import (
	"time"
)

// Visitor is an anonymous browser identified by a long-lived cookie.
type Visitor struct {
	VisitorID   string    `json:"visitor_id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	ChatCount   int       `json:"chat_count"`
}
