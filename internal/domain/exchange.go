package domain

import (
	"time"
)

// ExchangeStatus is the final outcome of a chat exchange.
type ExchangeStatus string

const (
	// ExchangeAnswered means a candidate model produced a completion.
	ExchangeAnswered ExchangeStatus = "answered"
	// ExchangeRejected means the request failed validation or configuration checks.
	ExchangeRejected ExchangeStatus = "rejected"
	// ExchangeFailed means every candidate model failed.
	ExchangeFailed ExchangeStatus = "failed"
)

// Exchange is the audit record of one chat request. Message text is never
// stored, only its size.
type Exchange struct {
	ID            string
	VisitorID     string
	RequestID     string
	Transport     string
	MessageLength int
	HistoryTurns  int
	Status        ExchangeStatus
	ErrorKind     string
	ErrorMessage  string
	Model         string
	Latency       time.Duration
	Attempts      []ExchangeAttempt
	CreatedAt     time.Time
}

// ExchangeAttempt is one candidate model call within an exchange.
type ExchangeAttempt struct {
	Ordinal int
	Model   string
	Outcome string
	Error   string
	Elapsed time.Duration
}

// ExchangeStats aggregates exchanges over a period.
type ExchangeStats struct {
	Total        int64            `json:"total"`
	Answered     int64            `json:"answered"`
	Failed       int64            `json:"failed"`
	Rejected     int64            `json:"rejected"`
	AvgLatencyMs float64          `json:"avg_latency_ms"`
	ByModel      map[string]int64 `json:"by_model"`
}
