package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/middleware"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// DefaultListLimit bounds GET /api/data responses.
const DefaultListLimit = 100

// APIProtected handles GET /api/protected - an API-key-gated endpoint that
// echoes back the caller's key identity and permissions.
func (h *Handler) APIProtected(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustAuthFromContext(r.Context())

	keyDisplay := authCtx.KeyPrefix
	if keyDisplay == "" {
		keyDisplay = auth.TruncateKey(h.staticKey, 15)
	}

	h.writeJSON(w, http.StatusOK, model.NewResponse("API key authentication successful", map[string]any{
		"api_key":     keyDisplay,
		"auth_method": authCtx.Method,
		"permissions": authCtx.Scopes,
	}))
}

// ListData handles GET /api/data - returns stored items.
func (h *Handler) ListData(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListItems(r.Context(), DefaultListLimit)
	if err != nil {
		h.logger.Error("item list failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views := make([]model.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, item.ToView())
	}

	h.writeJSON(w, http.StatusOK, model.NewResponse("Data retrieved successfully", map[string]any{
		"items": views,
		"total": len(views),
	}))
}

// CreateData handles POST /api/data - accepts an arbitrary JSON object and
// persists it as a new item.
func (h *Handler) CreateData(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		h.writeEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	authCtx := auth.MustAuthFromContext(r.Context())

	item := &model.Item{
		ID:        ulid.Make().String(),
		Name:      itemName(payload),
		Payload:   payload,
		CreatedBy: creatorID(authCtx),
		CreatedAt: time.Now().UTC(),
	}

	if err := h.items.CreateItem(r.Context(), item); err != nil {
		h.logger.Error("item create failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.metrics.IncItemCreated()

	h.logger.Info("item created",
		slog.String("item_id", item.ID),
		slog.Int64("seq", item.Seq),
		slog.String("created_by", item.CreatedBy),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	h.writeJSON(w, http.StatusCreated, model.NewResponse("Data received successfully", map[string]any{
		"received":  payload,
		"processed": true,
		"saved_id":  item.Seq,
	}))
}

// itemName derives a display name from the submitted payload.
func itemName(payload map[string]any) string {
	if name, ok := payload["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("item-%d", time.Now().UnixMilli())
}

// creatorID identifies the submitting principal for attribution.
func creatorID(authCtx *model.AuthContext) string {
	if authCtx.KeyID != "" {
		return authCtx.KeyID
	}
	if authCtx.Username != "" {
		return authCtx.Username
	}
	return authCtx.Method
}
