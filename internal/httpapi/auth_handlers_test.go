package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voltmesh.io/internal/auth"
)

func TestAuthFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	reg := env.register(t, "grid@example.com", "correct-horse", "", "")
	if reg.User.Email != "grid@example.com" || reg.SessionID == "" {
		t.Fatalf("unexpected register payload: %+v", reg)
	}
	if reg.Tokens.TokenType != "Bearer" {
		t.Fatalf("tokenType = %q", reg.Tokens.TokenType)
	}

	// Login with the same credentials.
	var login loginResponse
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "",
		loginRequest{Email: "grid@example.com", Password: "correct-horse"}, &login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	// Whoami with the fresh access token.
	var me struct {
		User *auth.User `json:"user"`
	}
	rec = env.do(t, http.MethodGet, "/v1/auth/me", login.Tokens.AccessToken, nil, &me)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", rec.Code, rec.Body.String())
	}
	if me.User == nil || me.User.ID != login.User.ID {
		t.Fatalf("unexpected me payload: %+v", me.User)
	}

	// Rotate via refresh; the session survives.
	var refreshed loginResponse
	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", "",
		refreshRequest{RefreshToken: login.Tokens.RefreshToken}, &refreshed)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}
	if refreshed.SessionID != login.SessionID {
		t.Fatal("refresh changed the session id")
	}
	if refreshed.Tokens.AccessToken == login.Tokens.AccessToken {
		t.Fatal("refresh did not rotate the access token")
	}

	// Logout, then both the rotated token and refresh stop working.
	rec = env.do(t, http.MethodPost, "/v1/auth/logout", refreshed.Tokens.AccessToken, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d: %s", rec.Code, rec.Body.String())
	}
	var body errorBody
	rec = env.do(t, http.MethodGet, "/v1/auth/me", refreshed.Tokens.AccessToken, nil, &body)
	if rec.Code != http.StatusUnauthorized || body.Code != auth.CodeSessionTerminated {
		t.Fatalf("me after logout: status=%d code=%q", rec.Code, body.Code)
	}
	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", "",
		refreshRequest{RefreshToken: refreshed.Tokens.RefreshToken}, &body)
	if rec.Code != http.StatusUnauthorized || body.Code != auth.CodeSessionTerminated {
		t.Fatalf("refresh after logout: status=%d code=%q", rec.Code, body.Code)
	}
}

func TestRegisterConflictAndValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken@example.com", "correct-horse", "", "")

	rec := env.do(t, http.MethodPost, "/v1/auth/register", "",
		registerRequest{Email: "TAKEN@example.com", Password: "correct-horse"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/register", "",
		registerRequest{Email: "short@example.com", Password: "nope"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short password status = %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "u@example.com", "correct-horse", "", "")

	var body errorBody
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "",
		loginRequest{Email: "u@example.com", Password: "wrong"}, &body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if body.Error != "invalid email or password" {
		t.Fatalf("error = %q", body.Error)
	}

	// Unknown email reads identically.
	var other errorBody
	rec = env.do(t, http.MethodPost, "/v1/auth/login", "",
		loginRequest{Email: "ghost@example.com", Password: "wrong"}, &other)
	if rec.Code != http.StatusUnauthorized || other.Error != body.Error {
		t.Fatalf("unknown email: status=%d error=%q", rec.Code, other.Error)
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/auth/refresh", "", refreshRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body errorBody
	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", "",
		refreshRequest{RefreshToken: "garbage"}, &body)
	if rec.Code != http.StatusUnauthorized || body.Code != auth.CodeInvalidToken {
		t.Fatalf("garbage refresh: status=%d code=%q", rec.Code, body.Code)
	}
}

func TestRefreshRejectsAccessTokenOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "u@example.com", "correct-horse", "", "")

	var body errorBody
	rec := env.do(t, http.MethodPost, "/v1/auth/refresh", "",
		refreshRequest{RefreshToken: reg.Tokens.AccessToken}, &body)
	if rec.Code != http.StatusUnauthorized || body.Code != auth.CodeInvalidToken {
		t.Fatalf("status=%d code=%q", rec.Code, body.Code)
	}
}

func TestAuthEndpointsRejectWrongMethod(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/auth/login", "", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"u@example.com","password":"x","extra":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
