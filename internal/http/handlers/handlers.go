// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Business rules live in the
// services package; persistence in repo.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-user-sync-backend/internal/domain"
	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
	"github.com/tbourn/go-user-sync-backend/internal/services"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
)

//
// Service contracts (context-aware)
//

// SyncService applies verified identity-provider events to the user store.
//
// Implementations must be safe for concurrent use and must honor the provided
// context for cancellation and timeouts.
type SyncService interface {
	// Apply folds one event into the store with idempotent outcomes.
	Apply(ctx context.Context, ev webhook.Event) (services.SyncResult, error)
}

// UserService exposes the caller's own projection.
//
// Implementations must be safe for concurrent use and must honor the provided
// context for cancellation and timeouts.
type UserService interface {
	// Get returns the projection for the verified subject id.
	Get(ctx context.Context, clerkID string) (*domain.User, error)
	// UpdateProfile applies a partial, validated profile update.
	UpdateProfile(ctx context.Context, clerkID string, in services.ProfileUpdateInput) (*domain.User, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for webhooks, profiles, and probes.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic; the DB handle serves the readiness probe and
// delivery dedup records only.
type Handlers struct {
	sync     SyncService
	users    UserService
	db       *gorm.DB
	verifier *webhook.Verifier // nil when no signing secret is configured
}

// New constructs a Handlers instance bound to the given collaborators.
// verifier may be nil; the webhook endpoint then fails closed with a 500.
func New(sync SyncService, users UserService, db *gorm.DB, verifier *webhook.Verifier) *Handlers {
	return &Handlers{sync: sync, users: users, db: db, verifier: verifier}
}

// subjectID extracts the verified subject id stored by the auth middleware
// under middleware.CtxKeyUserID. Empty when the request is unauthenticated.
func subjectID(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
