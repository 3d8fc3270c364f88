// Package identity provides anonymous per-browser visitor identity.
package identity

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// VisitorCookieName is the cookie carrying the anonymous visitor ID.
	VisitorCookieName   = "shikshaq_visitor"
	visitorCookieMaxAge = 365 * 24 * time.Hour
)

type contextKey int

const visitorIDKey contextKey = iota

var visitorIDPattern = regexp.MustCompile(`^v_[a-f0-9]{32}$`)

// VisitorToucher records that a visitor was seen. store.Repository satisfies it.
type VisitorToucher interface {
	TouchVisitor(ctx context.Context, visitorID string, seenAt time.Time) error
}

// VisitorIDFromContext extracts the visitor ID from the request context.
func VisitorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorIDKey).(string); ok {
		return v
	}
	return ""
}

// WithVisitorID returns a copy of ctx carrying visitorID.
func WithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorIDKey, visitorID)
}

func generateVisitorID() string {
	return "v_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func isValidVisitorID(id string) bool {
	return visitorIDPattern.MatchString(id)
}

// VisitorIDFromRequest returns the visitor ID carried by the request cookie,
// or "" when it is absent or malformed. It never issues a new ID.
func VisitorIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(VisitorCookieName); err == nil && isValidVisitorID(c.Value) {
		return c.Value
	}
	return ""
}

func getOrCreateVisitorID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	id := VisitorIDFromRequest(r)
	if id == "" {
		id = generateVisitorID()
	}

	// Refresh the expiry on every visit.
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(visitorCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id
}

// Middleware assigns a visitor ID cookie and records the visit. Mount it only
// on the chat routes so health checks and static assets never write visitors.
// A failure to record the visit is logged and never fails the request.
func Middleware(repo VisitorToucher, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := getOrCreateVisitorID(w, r, isDev)

			if repo != nil {
				if err := repo.TouchVisitor(r.Context(), visitorID, time.Now()); err != nil {
					slog.Warn("Failed to record visitor", "visitor_id", visitorID, "error", err)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), visitorID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for rate limiting and tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
