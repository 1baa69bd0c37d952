package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"login-service/internal/events"
	"login-service/internal/hashing"
	"login-service/internal/models"
	"login-service/internal/otp"
	"login-service/internal/service"
	"login-service/internal/store"

	"go.uber.org/zap"
)

type captureNotifier struct {
	mu       sync.Mutex
	lastCode string
}

func (n *captureNotifier) Send(ctx context.Context, destination, code string, method models.DeliveryMethod) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastCode = code
	return nil
}

func (n *captureNotifier) code() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastCode
}

func newTestServer(t *testing.T) (*httptest.Server, *captureNotifier) {
	t.Helper()

	logger := zap.NewNop()
	notifier := &captureNotifier{}
	credStore := store.NewCredentialStore(hashing.NewHasher(hashing.Argon2Params{}), nil, logger)
	manager := otp.NewManager(otp.NewMemoryChallengeStore(), notifier, nil, otp.Options{}, logger)
	authService := service.NewAuthService(credStore, manager, events.NopPublisher{}, logger)

	router := NewRouter(NewAuthHandler(authService, logger), logger)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, notifier
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, envelope
}

func TestLoginFlowOverHTTP(t *testing.T) {
	srv, notifier := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Abcdef1!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body = %+v", resp.StatusCode, env)
	}
	if !env.Success {
		t.Fatalf("register failed: %+v", env)
	}

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "Abcdef1!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body = %+v", resp.StatusCode, env)
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/otp-remaining/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("otp-remaining status = %d", resp.StatusCode)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("otp-remaining data = %T", env.Data)
	}
	if data["formatted"] == "" {
		t.Error("expected a formatted countdown")
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/verify-otp", map[string]interface{}{
		"account_id": 1,
		"code":       notifier.code(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-otp status = %d", resp.StatusCode)
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/session/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d", resp.StatusCode)
	}
	data = env.Data.(map[string]interface{})
	if data["is_authenticated"] != true {
		t.Errorf("is_authenticated = %v, want true", data["is_authenticated"])
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", map[string]interface{}{
		"account_id": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	_, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/session/1", nil)
	data = env.Data.(map[string]interface{})
	if data["is_authenticated"] != false {
		t.Errorf("is_authenticated after logout = %v, want false", data["is_authenticated"])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	register := map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "Abcdef1!",
	}
	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", register); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"DuplicateUsername", http.MethodPost, "/api/v1/auth/register", register, http.StatusConflict},
		{"WeakPassword", http.MethodPost, "/api/v1/auth/register", map[string]string{
			"username": "carl", "email": "carl@example.com", "password": "short",
		}, http.StatusBadRequest},
		{"WrongPassword", http.MethodPost, "/api/v1/auth/login", map[string]string{
			"username": "bob", "password": "nope",
		}, http.StatusUnauthorized},
		{"VerifyWithoutLogin", http.MethodPost, "/api/v1/auth/verify-otp", map[string]interface{}{
			"account_id": 1, "code": "123456",
		}, http.StatusUnauthorized},
		{"UnknownAccount", http.MethodGet, "/api/v1/accounts/999", nil, http.StatusNotFound},
		{"BadAccountID", http.MethodGet, "/api/v1/accounts/abc", nil, http.StatusBadRequest},
		{"UnknownRoute", http.MethodGet, "/api/v1/nope", nil, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := doJSON(t, tc.method, srv.URL+tc.path, tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d (body %+v)", resp.StatusCode, tc.status, env)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/validate", map[string]interface{}{
		"data": map[string]string{
			"email":    "",
			"password": "Abcdef1!",
		},
		"rules": map[string]interface{}{
			"email": []map[string]string{
				{"type": "required"},
				{"type": "email"},
			},
			"password": []map[string]string{
				{"type": "required"},
				{"type": "password"},
			},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate status = %d", resp.StatusCode)
	}

	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", env.Data)
	}
	if data["isValid"] != false {
		t.Errorf("isValid = %v, want false", data["isValid"])
	}
	fieldErrors, ok := data["errors"].(map[string]interface{})
	if !ok {
		t.Fatalf("errors = %T", data["errors"])
	}
	if fieldErrors["email"] != "email is required" {
		t.Errorf("email error = %q", fieldErrors["email"])
	}
	if _, present := fieldErrors["password"]; present {
		t.Errorf("password should have no error, got %q", fieldErrors["password"])
	}
}

func TestUpdateProfileEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", map[string]string{
		"username": "erin",
		"email":    "erin@example.com",
		"password": "Abcdef1!",
	}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/accounts/1", map[string]string{
		"email": "erin@new.example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body = %+v", resp.StatusCode, env)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", env.Data)
	}
	if data["email"] != "erin@new.example.com" {
		t.Errorf("email = %v", data["email"])
	}

	if resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/accounts/1", map[string]string{
		"email": "nope",
	}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed email status = %d, want 400", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/accounts/404", map[string]string{
		"email": "ghost@example.com",
	}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", resp.StatusCode)
	}
}

func TestAccountResponseHidesPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", map[string]string{
		"username": "dana",
		"email":    "dana@example.com",
		"password": "Abcdef1!",
	}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	_, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/accounts/1", nil)
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", env.Data)
	}
	for _, key := range []string{"password", "password_hash", "passwordHash"} {
		if _, present := data[key]; present {
			t.Errorf("account payload leaks %q", key)
		}
	}
	if data["username"] != "dana" {
		t.Errorf("username = %v", data["username"])
	}
}
