package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/middleware"
	"github.com/Iurilui616/APICHARLENO/internal/model"
	"github.com/Iurilui616/APICHARLENO/internal/repository"
)

// Protected handles GET /protected - a JWT-gated welcome endpoint.
func (h *Handler) Protected(w http.ResponseWriter, r *http.Request) {
	username := auth.UsernameFromContext(r.Context())

	h.writeJSON(w, http.StatusOK, model.NewResponse("Access granted", map[string]any{
		"message":  "Hello, " + username + "! This is a protected endpoint.",
		"username": username,
	}))
}

// Me handles GET /me - returns the authenticated user's public profile.
// Tokens remain valid even if the account row is gone, so a missing user
// falls back to a profile derived from the token subject.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username := auth.UsernameFromContext(r.Context())

	user, err := h.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeJSON(w, http.StatusOK, model.UserResponse{
				Username: username,
				Email:    username + "@myapi.com",
			})
			return
		}
		h.logger.Error("user lookup failed",
			slog.String("error", err.Error()),
			slog.String("username", username),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, user.ToResponse())
}

// Profile handles GET /profile - returns an extended account view.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	username := auth.UsernameFromContext(r.Context())

	data := map[string]any{
		"username": username,
		"email":    username + "@myapi.com",
		"role":     model.RoleUser,
		"verified": false,
	}

	user, err := h.users.GetUserByUsername(r.Context(), username)
	if err == nil {
		data["email"] = user.Email
		data["role"] = user.Role
		data["verified"] = user.Verified
		data["created_at"] = user.CreatedAt.UTC().Format(time.RFC3339)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		h.logger.Error("user lookup failed",
			slog.String("error", err.Error()),
			slog.String("username", username),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewResponse("User profile", data))
}
