package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Iurilui616/APICHARLENO/internal/audit"
	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/middleware"
	"github.com/Iurilui616/APICHARLENO/internal/model"
	"github.com/Iurilui616/APICHARLENO/internal/repository"
)

// Login handles POST /login - credential exchange for an access token.
// Failures are reported uniformly so usernames cannot be enumerated.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.loginFailed(r, req.Username)
		h.writeEnvelopeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.logger.Error("login lookup failed",
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetRequestID(r.Context())),
			)
		}
		// Burn a hash verification anyway to equalize response timing
		// between unknown users and wrong passwords.
		_, _ = auth.VerifySecret(req.Password, dummyHash)
		h.loginFailed(r, req.Username)
		h.writeEnvelopeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ok, err := auth.VerifySecret(req.Password, user.PasswordHash)
	if err != nil || !ok {
		h.loginFailed(r, req.Username)
		h.writeEnvelopeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.issuer.Issue(user.Username)
	if err != nil {
		h.logger.Error("token issue failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.metrics.IncLoginSuccess()
	now := time.Now()
	h.events.PublishAsync(audit.EventPayload{
		Event:      model.EventLoginSuccess,
		Username:   user.Username,
		IPHash:     audit.HashClientIP(middleware.GetClientIP(r), now),
		OccurredAt: now.UnixMilli(),
	})

	h.logger.Info("user logged in",
		slog.String("username", user.Username),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	h.writeJSON(w, http.StatusOK, model.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.issuer.TTL().Seconds()),
	})
}

// Register handles POST /register - creates a new user account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := middleware.ValidateUsername(req.Username); err != nil {
		h.writeEnvelopeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidatePassword(req.Password); err != nil {
		h.writeEnvelopeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		h.logger.Error("password hash failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Username:     req.Username,
		Email:        req.Username + "@myapi.com",
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			h.writeEnvelopeError(w, http.StatusConflict, "Username already exists")
			return
		}
		h.logger.Error("user create failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.writeEnvelopeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.metrics.IncUserRegistered()
	now := time.Now()
	h.events.PublishAsync(audit.EventPayload{
		Event:      model.EventRegistered,
		Username:   user.Username,
		IPHash:     audit.HashClientIP(middleware.GetClientIP(r), now),
		OccurredAt: now.UnixMilli(),
	})

	h.logger.Info("user registered",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	h.writeJSON(w, http.StatusCreated, model.NewResponse("User registered successfully", map[string]any{
		"username": user.Username,
	}))
}

// loginFailed records a failed login attempt.
func (h *Handler) loginFailed(r *http.Request, username string) {
	h.metrics.IncLoginFailure()
	now := time.Now()
	h.events.PublishAsync(audit.EventPayload{
		Event:      model.EventLoginFailure,
		Username:   username,
		IPHash:     audit.HashClientIP(middleware.GetClientIP(r), now),
		OccurredAt: now.UnixMilli(),
	})

	h.logger.Warn("login failed",
		slog.String("username", username),
		slog.String("ip", r.RemoteAddr),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
}

// dummyHash is a valid argon2id hash of a random value, used to equalize
// verification timing when the username does not exist.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"
