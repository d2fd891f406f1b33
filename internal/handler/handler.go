// Package handler contains the HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Iurilui616/APICHARLENO/internal/audit"
	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/metrics"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// ServiceName and ServiceVersion identify the API in the root and info endpoints.
const (
	ServiceName    = "MyAPI"
	ServiceVersion = "1.0.0"
)

// UserStore defines the user persistence operations the handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ItemStore defines the item persistence operations the handlers need.
type ItemStore interface {
	CreateItem(ctx context.Context, item *model.Item) error
	ListItems(ctx context.Context, limit int) ([]*model.Item, error)
	CountItems(ctx context.Context) (int64, error)
}

// AuditStore exposes the recorded audit volume for the stats endpoint.
type AuditStore interface {
	CountAuthEvents(ctx context.Context) (int64, error)
}

// EventSink receives auth events for asynchronous audit capture.
type EventSink interface {
	PublishAsync(event audit.EventPayload)
}

// noopSink discards events when auditing is disabled.
type noopSink struct{}

func (noopSink) PublishAsync(audit.EventPayload) {}

// Config holds the dependencies for the handlers.
type Config struct {
	Logger    *slog.Logger
	Users     UserStore
	Items     ItemStore
	Issuer    *auth.TokenIssuer
	Events    EventSink
	Metrics   metrics.Recorder
	Snapshots metrics.Snapshotter
	Audits    AuditStore // optional; adds audited event totals to /api/stats
	StaticKey string     // configured static API key, shown truncated in /info
}

// Handler holds HTTP handlers and their dependencies.
type Handler struct {
	logger    *slog.Logger
	users     UserStore
	items     ItemStore
	issuer    *auth.TokenIssuer
	events    EventSink
	metrics   metrics.Recorder
	snapshots metrics.Snapshotter
	audits    AuditStore
	staticKey string
	startedAt time.Time
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Events == nil {
		cfg.Events = noopSink{}
	}
	return &Handler{
		logger:    cfg.Logger,
		users:     cfg.Users,
		items:     cfg.Items,
		issuer:    cfg.Issuer,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		snapshots: cfg.Snapshots,
		audits:    cfg.Audits,
		staticKey: cfg.StaticKey,
		startedAt: time.Now().UTC(),
	}
}

// Root handles GET / - service identification.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":      ServiceName,
		"version":   ServiceVersion,
		"status":    "online",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Info handles GET /info - describes the supported authentication schemes.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	schemes := []map[string]any{
		{
			"type":        "jwt",
			"header":      "Authorization: Bearer <token>",
			"obtain_from": "POST /login",
			"expires_in":  int(h.issuer.TTL().Seconds()),
		},
		{
			"type":   "api_key",
			"header": "X-API-Key: <key>",
			"format": "sk_{live|test}_{prefix}_{secret}",
		},
	}

	data := map[string]any{
		"name":         ServiceName,
		"version":      ServiceVersion,
		"auth_schemes": schemes,
	}
	if h.staticKey != "" {
		data["api_key_preview"] = auth.TruncateKey(h.staticKey, 20)
	}

	h.writeJSON(w, http.StatusOK, model.NewResponse("API information", data))
}

// NotFound handles unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles unsupported HTTP methods on matched routes.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError writes a structured error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeEnvelopeError writes a failure envelope with the given status code.
func (h *Handler) writeEnvelopeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, model.NewErrorResponse(message))
}

// decodeJSON decodes a request body into v, rejecting malformed input.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
