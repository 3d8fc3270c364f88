package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shikshaq/shikshaq-chat/internal/audit"
	"github.com/shikshaq/shikshaq-chat/internal/chat"
	"github.com/shikshaq/shikshaq-chat/internal/identity"
)

const defaultMaxRequestBodySize = 1 << 20

// Error envelope texts returned by the chat endpoints.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgMessageRequired  = "Message is required"
	msgAPIKeyMissing    = "API key not configured"
	msgGenerateFailed   = "Failed to generate response"
	msgBodyTooLarge     = "Request body too large"
	msgTooManyRequests  = "Too many requests"
)

var errBodyTooLarge = errors.New("request body too large")

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	chat        ChatService
	recorder    audit.Recorder
	maxBodySize int64
}

// NewChatHandler creates a chat handler. A nil recorder disables auditing.
func NewChatHandler(svc ChatService, recorder audit.Recorder, maxBodySize int64) *ChatHandler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &ChatHandler{
		chat:        svc,
		recorder:    recorder,
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers the HTTP chat route. Any method is routed here so
// that non-POST requests get the JSON 405 envelope.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/api/chat", h.HandleChat)
}

// chatBody is the wire shape of a chat request. Fields are decoded lazily so a
// non-string message is reported as missing rather than as a decode error.
type chatBody struct {
	Message json.RawMessage `json:"message"`
	History json.RawMessage `json:"history"`
}

// reply is the outcome of one chat request, independent of transport.
type reply struct {
	status int
	body   map[string]any
}

// HandleChat handles /api/chat.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		Error(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	req, err := decodeChatRequest(r.Body)
	if errors.Is(err, errBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}

	res := h.respond(r.Context(), req, requestMeta{
		visitorID: identity.VisitorIDFromContext(r.Context()),
		requestID: chiMiddleware.GetReqID(r.Context()),
		transport: "http",
	})
	JSON(w, res.status, res.body)
}

type requestMeta struct {
	visitorID string
	requestID string
	transport string
}

// respond runs the chat pipeline and maps its outcome to a status and envelope.
func (h *ChatHandler) respond(ctx context.Context, req chat.Request, meta requestMeta) reply {
	started := time.Now()
	result, err := h.chat.Answer(ctx, req)

	h.recorder.Record(audit.NewExchange(audit.Entry{
		VisitorID: meta.visitorID,
		RequestID: meta.requestID,
		Transport: meta.transport,
		Request:   req,
		Result:    result,
		Err:       err,
		Started:   started,
	}))

	if err == nil {
		return reply{status: http.StatusOK, body: map[string]any{"response": result.Text}}
	}
	return failureReply(err, meta)
}

func failureReply(err error, meta requestMeta) reply {
	var chatErr *chat.Error
	if !errors.As(err, &chatErr) {
		slog.Error("Chat request failed", "request_id", meta.requestID, "error", err)
		return reply{status: http.StatusInternalServerError, body: map[string]any{
			"error":   msgGenerateFailed,
			"message": err.Error(),
		}}
	}

	switch {
	case chatErr.Kind == chat.KindInvalidInput:
		return reply{status: http.StatusBadRequest, body: map[string]any{"error": msgMessageRequired}}
	case errors.Is(chatErr, chat.ErrMissingCredential):
		slog.Error("Chat request rejected, provider credential missing", "request_id", meta.requestID)
		return reply{status: http.StatusInternalServerError, body: map[string]any{"error": msgAPIKeyMissing}}
	default:
		return reply{status: http.StatusInternalServerError, body: map[string]any{
			"error":   msgGenerateFailed,
			"message": chatErr.Message(),
		}}
	}
}

// decodeChatRequest reads a chat request body. Malformed JSON and non-string
// messages yield an empty message; history that does not parse is dropped.
func decodeChatRequest(body io.Reader) (chat.Request, error) {
	var req chat.Request

	var raw chatBody
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, errBodyTooLarge
		}
		return req, nil
	}

	var msg string
	if err := json.Unmarshal(raw.Message, &msg); err == nil {
		req.Message = msg
	}
	if len(raw.History) > 0 {
		var history []chat.Turn
		if err := json.Unmarshal(raw.History, &history); err == nil {
			req.History = history
		}
	}
	return req, nil
}
