// Package services defines the business logic for webhook-driven user
// synchronization and profile management. This file implements the profile
// operations behind the authenticated /users/me endpoints.
package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-user-sync-backend/internal/domain"
	"github.com/tbourn/go-user-sync-backend/internal/repo"
)

// ProfileUpdateInput carries the optional user-editable fields of a profile
// update. Nil means "leave unchanged".
type ProfileUpdateInput struct {
	FirstName *string
	LastName  *string
	Plan      *string
}

// UserService reads and mutates the caller's own projection, addressed by the
// verified subject id from the auth gate.
type UserService struct {
	DB *gorm.DB
}

// Get returns the projection for clerkID, or ErrUserNotFound when the subject
// was authenticated but never provisioned by a webhook event.
func (s *UserService) Get(ctx context.Context, clerkID string) (*domain.User, error) {
	u, err := repo.GetUserByClerkID(ctx, s.DB, clerkID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// UpdateProfile validates and applies a partial profile update for clerkID.
//
// Validation mirrors the write-path rules enforced at the transport layer:
// name fields 1-100 characters, plan restricted to the enumerated values.
// The service re-checks them so no write path can bypass the invariant.
func (s *UserService) UpdateProfile(ctx context.Context, clerkID string, in ProfileUpdateInput) (*domain.User, error) {
	for _, name := range []*string{in.FirstName, in.LastName} {
		if name == nil {
			continue
		}
		if n := utf8.RuneCountInString(*name); n < 1 || n > 100 {
			return nil, ErrInvalidName
		}
	}
	if in.Plan != nil && !domain.ValidPlan(*in.Plan) {
		return nil, ErrInvalidPlan
	}

	u, err := repo.UpdateProfile(ctx, s.DB, clerkID, repo.ProfileUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Plan:      in.Plan,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}
