package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shikshaq/shikshaq-chat/internal/identity"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketHandler serves the chat pipeline over a WebSocket. Each text frame
// is a chat request; each reply carries the HTTP envelope plus its status.
type WebSocketHandler struct {
	chat           *ChatHandler
	limiter        Limiter
	originPatterns []string
}

// NewWebSocketHandler creates a WebSocket chat handler. A nil limiter
// disables per-message throttling.
func NewWebSocketHandler(chatHandler *ChatHandler, limiter Limiter, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		chat:           chatHandler,
		limiter:        limiter,
		originPatterns: originPatterns(allowedOrigins),
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.ServeHTTP)
}

// originPatterns converts allowed origin URLs into the host patterns the
// WebSocket handshake checks.
func originPatterns(allowed []string) []string {
	patterns := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	ip := identity.IPFromRequest(r)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("Failed to accept WebSocket", "error", err, "ip", ip)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()
	ws.SetReadLimit(h.chat.maxBodySize)

	slog.Info("Chat WebSocket connected", "visitor_id", visitorID, "ip", ip)
	ctx := r.Context()
	baseID := chiMiddleware.GetReqID(ctx)

	for seq := 1; ; seq++ {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("Chat WebSocket read ended", "error", err, "visitor_id", visitorID)
			}
			slog.Info("Chat WebSocket disconnected", "visitor_id", visitorID, "messages", seq-1)
			return
		}
		if typ != websocket.MessageText {
			_ = ws.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		var res reply
		if h.limiter != nil && !h.limiter.Allow(ip) {
			res = reply{status: http.StatusTooManyRequests, body: map[string]any{"error": msgTooManyRequests}}
		} else {
			req, _ := decodeChatRequest(bytes.NewReader(data))
			res = h.chat.respond(ctx, req, requestMeta{
				visitorID: visitorID,
				requestID: baseID,
				transport: "ws",
			})
		}

		res.body["status"] = res.status
		writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err = wsjson.Write(writeCtx, ws, res.body)
		cancel()
		if err != nil {
			slog.Debug("Chat WebSocket write failed", "error", err, "visitor_id", visitorID)
			return
		}
	}
}
