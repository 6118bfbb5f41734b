package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voltmesh.io/internal/auth"
	"voltmesh.io/internal/session"
)

const (
	testAccessSecret  = "unit-test-access-secret-0123456789abcdef"
	testRefreshSecret = "unit-test-refresh-secret-0123456789abcdef"
)

type testEnv struct {
	api      *API
	svc      *auth.Service
	handler  http.Handler
	registry *session.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec, err := auth.NewCodec(testAccessSecret, testRefreshSecret, auth.WithIssuer("voltmesh"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	registry := session.NewMemory(0)
	t.Cleanup(registry.Close)
	svc, err := auth.NewService(codec, auth.NewMemoryStore(), registry)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(svc, NewDeviceInventory(), ReadyProbe{}, "test")
	return &testEnv{api: api, svc: svc, handler: api.Handler(), registry: registry}
}

// do runs one request through the full middleware chain and decodes the
// JSON body, if any, into out.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response (%d): %v\n%s", method, path, rec.Code, err, rec.Body.String())
		}
	}
	return rec
}

// register creates a user through the HTTP surface and returns the login
// payload.
func (e *testEnv) register(t *testing.T, email, password, role, companyID string) loginResponse {
	t.Helper()
	var resp loginResponse
	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Email:     email,
		Password:  password,
		Role:      role,
		CompanyID: companyID,
	}, &resp)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	return resp
}

type errorBody struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	RequestID string   `json:"request_id"`
	Required  []string `json:"required"`
	Current   any      `json:"current"`
}
