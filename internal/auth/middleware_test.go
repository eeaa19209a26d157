package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
)

type staticVerifier struct {
	subject string
	err     error
}

func (v staticVerifier) Verify(context.Context, string) (string, error) {
	return v.subject, v.err
}

func TestRequireAuth_SubjectSharedAcrossLayers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var fromHelper string
	var fromContext string
	r := gin.New()
	r.Use(RequireAuth(staticVerifier{subject: "user_1"}))
	r.GET("/me", func(c *gin.Context) {
		fromHelper, _ = SubjectFrom(c)
		if v, ok := c.Get(middleware.CtxKeyUserID); ok {
			fromContext, _ = v.(string)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// The helper and the raw context key must read the same stored subject.
	if fromHelper != "user_1" || fromContext != "user_1" {
		t.Fatalf("subject via helper = %q, via context key = %q", fromHelper, fromContext)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(v TokenVerifier, header string) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(RequireAuth(v))
		r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := run(staticVerifier{subject: "user_1"}, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing header status = %d", w.Code)
	}
	if w := run(staticVerifier{err: errors.New("bad")}, "Bearer tok"); w.Code != http.StatusUnauthorized {
		t.Errorf("failed verification status = %d", w.Code)
	}
}
