package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs redirects the global logger into a buffer for the test's
// duration.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func loggedRig(opts LoggerOptions, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(opts), Recovery(false))
	r.GET("/work", handler)
	r.GET("/health", handler)
	return r
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	captureLogs(t)
	var seen string
	r := loggedRig(LoggerOptions{}, func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	rid := w.Header().Get("X-Request-ID")
	if rid == "" {
		t.Fatalf("no request id on response")
	}
	if seen != rid {
		t.Errorf("context id %q != header id %q", seen, rid)
	}

	// An inbound id is reused verbatim.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Errorf("inbound id replaced: %q", got)
	}
}

func TestLogger_AccessLineAndLevels(t *testing.T) {
	buf := captureLogs(t)
	r := loggedRig(LoggerOptions{}, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "info" || entry["method"] != "GET" || entry["path"] != "/work" {
		t.Errorf("entry = %v", entry)
	}
	if entry["request_id"] == "" {
		t.Errorf("request_id missing from access line")
	}

	// 4xx logs at warn.
	buf.Reset()
	r404 := loggedRig(LoggerOptions{}, func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r404.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/work", nil))
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("4xx not logged at warn: %s", buf.String())
	}
}

func TestLogger_SkipPathsAndMasking(t *testing.T) {
	buf := captureLogs(t)
	opts := LoggerOptions{
		SkipPaths:   []string{"/health"},
		MaskHeaders: []string{"Authorization"},
	}
	r := loggedRig(opts, func(c *gin.Context) {
		// Handler-emitted log lines carry the masked context too.
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if s := buf.String(); strings.Contains(s, `"msg":"request"`) || strings.Contains(s, `"message":"request"`) {
		t.Errorf("probe path logged an access line: %s", s)
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set("Authorization", "Bearer super-secret-token")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("credential leaked into logs: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("masked header not recorded: %s", out)
	}
}

func TestRecovery_PanicBecomesEnvelope(t *testing.T) {
	buf := captureLogs(t)
	r := loggedRig(LoggerOptions{}, func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "internal_error" || body["statusCode"] != float64(500) {
		t.Errorf("body = %v", body)
	}
	if body["requestId"] == "" {
		t.Errorf("requestId missing from panic envelope")
	}
	if _, leaked := body["stack"]; leaked {
		t.Errorf("stack exposed with includeStack=false")
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRecovery_StackInDevelopment(t *testing.T) {
	captureLogs(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(true))
	r.GET("/work", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	stack, _ := body["stack"].(string)
	if !strings.Contains(stack, "goroutine") {
		t.Errorf("stack missing from development envelope")
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger is nil")
	}
}
