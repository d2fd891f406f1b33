package model

import "time"

// Auth event types recorded by the audit pipeline.
const (
	EventLoginSuccess = "login_success"
	EventLoginFailure = "login_failure"
	EventRegistered   = "registered"
	EventAPIKeyUsed   = "api_key_used"
	EventAuthDenied   = "auth_denied"
)

// AuthEvent is a persisted record of an authentication outcome.
type AuthEvent struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	Username   string    `json:"username,omitempty"`
	KeyPrefix  string    `json:"key_prefix,omitempty"`
	IPHash     string    `json:"ip_hash"`
	OccurredAt time.Time `json:"occurred_at"`
}
