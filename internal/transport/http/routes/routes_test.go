package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/infra/config"
	"github.com/toolhub/admin-gate/internal/infra/security"
	"github.com/toolhub/admin-gate/internal/repository/memory"
	httproutes "github.com/toolhub/admin-gate/internal/transport/http/routes"
	"github.com/toolhub/admin-gate/internal/usecase"
)

type capturingDeliverer struct {
	mu    sync.Mutex
	codes []string
}

func (d *capturingDeliverer) Deliver(_ context.Context, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.codes = append(d.codes, code)
	return nil
}

func (d *capturingDeliverer) last(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.codes) == 0 {
		t.Fatalf("no code was delivered")
	}
	return d.codes[len(d.codes)-1]
}

func newTestRouter(t *testing.T) (*gin.Engine, *capturingDeliverer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	secrets, err := security.NewStaticSecretStore("admin@x.com", "correctpw", "rightcode", "0123456789abcdef")
	if err != nil {
		t.Fatalf("NewStaticSecretStore returned error: %v", err)
	}

	sessions, err := usecase.NewAdminSessionService(
		"0123456789abcdef0123456789abcdef", "admin-gate", 24*time.Hour,
		memory.NewAdminSessionStore(), nil, nil,
	)
	if err != nil {
		t.Fatalf("NewAdminSessionService returned error: %v", err)
	}

	deliverer := &capturingDeliverer{}

	verification, err := usecase.NewVerificationService(
		secrets, memory.NewVerificationStore(), deliverer, sessions, nil, nil, nil,
	)
	if err != nil {
		t.Fatalf("NewVerificationService returned error: %v", err)
	}

	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config:       cfg,
		Logger:       zap.NewNop(),
		Verification: verification,
		Sessions:     sessions,
	})

	return r, deliverer
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestVerificationFlowOverHTTP(t *testing.T) {
	r, deliverer := newTestRouter(t)

	w := postJSON(t, r, "/api/v1/admin/login", map[string]string{
		"identity": "admin@x.com",
		"secret":   "correctpw",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var login struct {
		SessionKey string `json:"session_key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if login.SessionKey == "" {
		t.Fatalf("expected a session key")
	}

	w = postJSON(t, r, "/api/v1/admin/verify-code", map[string]string{
		"session_key": login.SessionKey,
		"code":        "rightcode",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify-code: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/api/v1/admin/verify-otp", map[string]string{
		"session_key": login.SessionKey,
		"code":        deliverer.last(t),
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify-otp: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var grant struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &grant); err != nil {
		t.Fatalf("decode grant response: %v", err)
	}
	if grant.Token == "" || grant.TokenType != "Bearer" {
		t.Fatalf("expected bearer token, got %+v", grant)
	}

	// Logout revokes the session; a second logout sees an unknown token.
	auth := map[string]string{"Authorization": "Bearer " + grant.Token}
	w = postJSON(t, r, "/api/v1/admin/logout", struct{}{}, auth)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: expected status 204, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/api/v1/admin/logout", struct{}{}, auth)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("logout after revoke: expected status 401, got %d", w.Code)
	}
}

func TestVerificationFlowRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postJSON(t, r, "/api/v1/admin/login", map[string]string{
		"identity": "admin@x.com",
		"secret":   "wrongpw",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}

	w = postJSON(t, r, "/api/v1/admin/verify-code", map[string]string{
		"session_key": "not-a-session",
		"code":        "rightcode",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unknown session, got %d", w.Code)
	}

	w = postJSON(t, r, "/api/v1/admin/login", map[string]string{"identity": "admin@x.com"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing secret, got %d", w.Code)
	}
}

func TestAuditEndpointRequiresSession(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}
