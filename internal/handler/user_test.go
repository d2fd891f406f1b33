package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// withJWTAuth injects a JWT auth context for the given username.
func withJWTAuth(req *http.Request, username string) *http.Request {
	authCtx := &model.AuthContext{
		Method:   model.AuthMethodJWT,
		Username: username,
		Scopes:   []string{model.ScopeRead, model.ScopeWrite},
	}
	return req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
}

func TestProtected(t *testing.T) {
	env := newTestEnv(t)

	req := withJWTAuth(httptest.NewRequest(http.MethodGet, "/protected", nil), "alice")
	rec := httptest.NewRecorder()
	env.handler.Protected(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data["username"] != "alice" {
		t.Errorf("data.username = %v, want alice", resp.Data["username"])
	}
}

func TestMe_ExistingUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "secret123", model.RoleUser)

	req := withJWTAuth(httptest.NewRequest(http.MethodGet, "/me", nil), "alice")
	rec := httptest.NewRecorder()
	env.handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp model.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Username != "alice" {
		t.Errorf("username = %q, want alice", resp.Username)
	}
	if resp.Email != "alice@myapi.com" {
		t.Errorf("email = %q", resp.Email)
	}
}

func TestMe_UserMissingFromStore(t *testing.T) {
	env := newTestEnv(t)

	// Token subject with no backing row still gets a derived profile
	req := withJWTAuth(httptest.NewRequest(http.MethodGet, "/me", nil), "ghost")
	rec := httptest.NewRecorder()
	env.handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp model.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Username != "ghost" {
		t.Errorf("username = %q, want ghost", resp.Username)
	}
	if resp.Email != "ghost@myapi.com" {
		t.Errorf("email = %q, want derived fallback", resp.Email)
	}
}

func TestMe_NeverExposesPasswordHash(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "secret123", model.RoleUser)

	req := withJWTAuth(httptest.NewRequest(http.MethodGet, "/me", nil), "alice")
	rec := httptest.NewRecorder()
	env.handler.Me(rec, req)

	body := rec.Body.String()
	if len(body) == 0 {
		t.Fatal("empty body")
	}
	for _, needle := range []string{"password", "argon2", "hash"} {
		if contains(body, needle) {
			t.Errorf("response body leaks %q: %s", needle, body)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestProfile_ExistingUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "admin", "admin123", model.RoleAdmin)
	user.Verified = true

	req := withJWTAuth(httptest.NewRequest(http.MethodGet, "/profile", nil), "admin")
	rec := httptest.NewRecorder()
	env.handler.Profile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Data["role"] != model.RoleAdmin {
		t.Errorf("role = %v, want admin", resp.Data["role"])
	}
	if resp.Data["verified"] != true {
		t.Errorf("verified = %v, want true", resp.Data["verified"])
	}
	if resp.Data["created_at"] == nil {
		t.Error("created_at missing")
	}
}

func TestProfile_UserMissingFromStore(t *testing.T) {
	env := newTestEnv(t)

	req := withJWTAuth(httptest.NewRequest(http.MethodGet, "/profile", nil), "ghost")
	rec := httptest.NewRecorder()
	env.handler.Profile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Data["role"] != model.RoleUser {
		t.Errorf("fallback role = %v, want user", resp.Data["role"])
	}
	if resp.Data["verified"] != false {
		t.Errorf("fallback verified = %v, want false", resp.Data["verified"])
	}
}
