package handler

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/Iurilui616/APICHARLENO/internal/middleware"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// Stats handles GET /api/stats - service usage statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userCount, err := h.users.CountUsers(r.Context())
	if err != nil {
		h.logger.Error("user count failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	itemCount, err := h.items.CountItems(r.Context())
	if err != nil {
		h.logger.Error("item count failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	data := map[string]any{
		"active_users":   userCount,
		"total_items":    itemCount,
		"uptime_hours":   uptimeHours(h.startedAt),
		"api_key_status": "active",
	}

	if h.snapshots != nil {
		snap := h.snapshots.Snapshot()
		data["total_requests"] = snap.LoginSuccesses + snap.LoginFailures + snap.ItemsCreated
		data["logins"] = map[string]uint64{
			"success": snap.LoginSuccesses,
			"failure": snap.LoginFailures,
		}
		data["registrations"] = snap.UsersRegistered
	}

	// Audited totals survive restarts, unlike the in-memory counters.
	if h.audits != nil {
		audited, err := h.audits.CountAuthEvents(r.Context())
		if err != nil {
			h.logger.Warn("auth event count failed",
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetRequestID(r.Context())),
			)
		} else {
			data["auth_events"] = audited
		}
	}

	h.writeJSON(w, http.StatusOK, model.NewResponse("Statistics retrieved", data))
}

// uptimeHours returns the elapsed hours since start, rounded to two decimals.
func uptimeHours(startedAt time.Time) float64 {
	hours := time.Since(startedAt).Hours()
	return math.Round(hours*100) / 100
}
