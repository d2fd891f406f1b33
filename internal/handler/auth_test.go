package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Iurilui616/APICHARLENO/internal/model"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin", "admin123", model.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"admin","password":"admin123"}`))
	rec := httptest.NewRecorder()
	env.handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var resp model.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}

	if resp.AccessToken == "" {
		t.Error("access_token is empty")
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 1800 {
		t.Errorf("expires_in = %d, want 1800", resp.ExpiresIn)
	}

	snap := env.metrics.Snapshot()
	if snap.LoginSuccesses != 1 {
		t.Errorf("LoginSuccesses = %d, want 1", snap.LoginSuccesses)
	}

	if len(env.events.events) != 1 || env.events.events[0].Event != model.EventLoginSuccess {
		t.Errorf("expected one login_success audit event, got %+v", env.events.events)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin", "admin123", model.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"admin","password":"wrong-password"}`))
	rec := httptest.NewRecorder()
	env.handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Message != "Invalid credentials" {
		t.Errorf("message = %q, want %q", resp.Message, "Invalid credentials")
	}

	snap := env.metrics.Snapshot()
	if snap.LoginFailures != 1 {
		t.Errorf("LoginFailures = %d, want 1", snap.LoginFailures)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"ghost","password":"whatever123"}`))
	rec := httptest.NewRecorder()
	env.handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Unknown user and wrong password must be indistinguishable
	resp := decodeEnvelope(t, rec)
	if resp.Message != "Invalid credentials" {
		t.Errorf("message = %q, want %q", resp.Message, "Invalid credentials")
	}
}

func TestLogin_EmptyCredentials(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name string
		body string
	}{
		{"empty username", `{"username":"","password":"admin123"}`},
		{"empty password", `{"username":"admin","password":""}`},
		{"both empty", `{"username":"","password":""}`},
		{"missing fields", `{}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			env.handler.Login(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	env.handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"username":"alice","password":"secret123"}`))
	rec := httptest.NewRecorder()
	env.handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data["username"] != "alice" {
		t.Errorf("data.username = %v, want alice", resp.Data["username"])
	}

	// User persisted with hashed password
	user, ok := env.users.users["alice"]
	if !ok {
		t.Fatal("user not persisted")
	}
	if user.PasswordHash == "secret123" {
		t.Error("password stored in plaintext")
	}
	if !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
		t.Errorf("password hash not argon2id: %q", user.PasswordHash)
	}
	if user.Role != model.RoleUser {
		t.Errorf("role = %q, want user", user.Role)
	}

	snap := env.metrics.Snapshot()
	if snap.UsersRegistered != 1 {
		t.Errorf("UsersRegistered = %d, want 1", snap.UsersRegistered)
	}

	if len(env.events.events) != 1 || env.events.events[0].Event != model.EventRegistered {
		t.Errorf("expected one registered audit event, got %+v", env.events.events)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "secret123", model.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(`{"username":"alice","password":"other-password"}`))
	rec := httptest.NewRecorder()
	env.handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Message != "Username already exists" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestRegister_ValidationFailures(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name string
		body string
	}{
		{"username too short", `{"username":"ab","password":"secret123"}`},
		{"password too short", `{"username":"alice","password":"abc"}`},
		{"username invalid chars", `{"username":"al ice","password":"secret123"}`},
		{"reserved username", `{"username":"root","password":"secret123"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			env.handler.Register(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
			}

			resp := decodeEnvelope(t, rec)
			if resp.Success {
				t.Error("expected success=false")
			}
		})
	}
}
