package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-user-sync-backend/internal/auth"
	"github.com/tbourn/go-user-sync-backend/internal/config"
	"github.com/tbourn/go-user-sync-backend/internal/repo"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
	"gorm.io/gorm"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// --- RS256 credential helpers ---
func newTestKeys(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemKey)
}

func signToken(t *testing.T, key *rsa.PrivateKey, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func baseConfig() config.Config {
	return config.Config{
		RateGeneral: config.RatePolicyConfig{Window: 15 * time.Minute, Limit: 100},
		RateAuth:    config.RatePolicyConfig{Window: 15 * time.Minute, Limit: 10},
		RateAPI:     config.RatePolicyConfig{Window: time.Minute, Limit: 30},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

// rig wires the full router with a fresh DB, a working webhook verifier, and
// an RS256 token verifier. Returns the engine, DB, and a signer for tokens.
func routerRig(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB, *rsa.PrivateKey) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)

	key, pemKey := newTestKeys(t)
	tokens, err := auth.NewJWTVerifier(pemKey)
	if err != nil {
		t.Fatalf("jwt verifier: %v", err)
	}
	verifier, err := webhook.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("webhook verifier: %v", err)
	}

	RegisterRoutes(r, db, tokens, verifier, cfg)
	return r, db, key
}

// signedWebhook builds a correctly signed delivery request.
func signedWebhook(t *testing.T, id string, payload []byte) *http.Request {
	t.Helper()
	ts := time.Now()
	sig, err := webhook.Sign(testSecret, id, ts, payload)
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/clerk", bytes.NewReader(payload))
	req.Header.Set(webhook.HeaderID, id)
	req.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(webhook.HeaderSignature, sig)
	return req
}

func TestRegisterRoutes_ProbesMetricsFallbacks(t *testing.T) {
	r, _, _ := routerRig(t, baseConfig())

	// /health works and CORS allow-all applies
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /ready reports database connectivity
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ready = %d", w.Code)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404 envelope naming the route
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 body: %v", err)
	}
	if body["code"] != "not_found" || body["requestId"] == "" {
		t.Fatalf("404 envelope = %v", body)
	}

	// NoMethod → 405 (DELETE /health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _, _ := routerRig(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

// Full loop: webhook provisions the user, then the profile API serves it.
func TestRegisterRoutes_WebhookToProfileFlow(t *testing.T) {
	r, _, key := routerRig(t, baseConfig())
	token := signToken(t, key, "user_router_1")

	// Before provisioning: authenticated but unknown subject → 404
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("pre-provision GET /api/users/me = %d (%s)", w.Code, w.Body.String())
	}

	// Deliver a signed user.created event
	payload := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_router_1",
			"email_addresses": [{"email_address": "router@example.com"}],
			"first_name": "Ann"
		}
	}`)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhook(t, "msg_router_1", payload))
	if w.Code != http.StatusOK {
		t.Fatalf("webhook delivery = %d (%s)", w.Code, w.Body.String())
	}

	// Profile now resolves
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("post-provision GET /api/users/me = %d (%s)", w.Code, w.Body.String())
	}
	var u map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("profile body: %v", err)
	}
	if u["email"] != "router@example.com" || u["plan"] != "free" {
		t.Fatalf("profile = %v", u)
	}
}

func TestRegisterRoutes_ProfileRequiresCredential(t *testing.T) {
	r, _, _ := routerRig(t, baseConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bare GET /api/users/me = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token GET /api/users/me = %d", w.Code)
	}
}

func TestRegisterRoutes_TamperedWebhookRejected(t *testing.T) {
	r, _, _ := routerRig(t, baseConfig())

	payload := []byte(`{"type":"user.created","data":{"id":"user_x","email_addresses":[{"email_address":"x@example.com"}]}}`)
	req := signedWebhook(t, "msg_tampered", payload)
	req.Body = io.NopCloser(bytes.NewReader(append(payload, ' ')))
	req.ContentLength = int64(len(payload) + 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("tampered delivery = %d (%s)", w.Code, w.Body.String())
	}
}

func TestRequireAuth_NotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)

	verifier, err := webhook.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("webhook verifier: %v", err)
	}
	RegisterRoutes(r, db, nil, verifier, baseConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unconfigured auth = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

// Smoke test that a request traverses tracing + ratelimit + security headers.
func TestPipeline_Smoke(t *testing.T) {
	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _, _ := routerRig(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/work-not-registered", nil)
	r.ServeHTTP(w, req)

	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing, nosniff=%q", got)
	}
	if w.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatalf("rate limit headers missing")
	}
	_ = context.Background()
}
