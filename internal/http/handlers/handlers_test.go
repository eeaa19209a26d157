package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
	"github.com/tbourn/go-user-sync-backend/internal/repo"
	"github.com/tbourn/go-user-sync-backend/internal/services"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

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

// newRig wires the handlers behind a minimal engine: request ids for the
// error envelope, an optional pre-verified subject, and real services over an
// in-memory store.
func newRig(t *testing.T, verifier *webhook.Verifier, subject string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	h := New(
		&services.SyncService{DB: db, Log: zerolog.Nop()},
		&services.UserService{DB: db},
		db,
		verifier,
	)

	r := gin.New()
	r.Use(middleware.RequestID())
	if subject != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.CtxKeyUserID, subject)
			c.Next()
		})
	}
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.POST("/api/webhooks/clerk", h.ClerkWebhook)
	r.GET("/api/users/me", h.GetMe)
	r.PATCH("/api/users/me", h.UpdateMe)
	return r, db
}

func newTestVerifier(t *testing.T) *webhook.Verifier {
	t.Helper()
	v, err := webhook.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return v
}

func strptr(s string) *string { return &s }
