// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User
// projection, keyed by the external identity-provider id (clerk_id).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. Use IsDuplicate to detect
//     unique-constraint violations.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-user-sync-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UserFields carries the mutable projection fields delivered by provider
// events. Pointer fields distinguish "unset" from "set to empty"; an empty
// Email means "leave unchanged" on update, since synced addresses are never
// empty strings.
type UserFields struct {
	Email     string
	FirstName *string
	LastName  *string
	ImageURL  *string
}

// CreateUser inserts a new User projection for clerkID with plan "free".
// The row ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted User. On failure, it returns a DB error
// (IsDuplicate detects an existing clerk_id or email).
func CreateUser(ctx context.Context, db *gorm.DB, clerkID string, f UserFields) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.NewString(),
		ClerkID:   clerkID,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		ImageURL:  f.ImageURL,
		Plan:      domain.PlanFree,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByClerkID fetches a single projection by its external id. If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetUserByClerkID(ctx context.Context, db *gorm.DB, clerkID string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("clerk_id = ?", clerkID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserByClerkID overwrites the provider-owned fields of the projection
// matched by clerkID. An empty Email leaves the stored address untouched
// (provider update events may omit addresses). If no rows are affected
// (projection missing), it returns ErrNotFound so the caller can decide to
// upsert instead.
func UpdateUserByClerkID(ctx context.Context, db *gorm.DB, clerkID string, f UserFields) (*domain.User, error) {
	updates := map[string]any{
		"first_name": f.FirstName,
		"last_name":  f.LastName,
		"image_url":  f.ImageURL,
	}
	if f.Email != "" {
		updates["email"] = f.Email
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("clerk_id = ?", clerkID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetUserByClerkID(ctx, db, clerkID)
}

// DeleteUserByClerkID removes the projection matched by clerkID and reports
// how many rows were removed. Deleting an absent projection is not an error;
// the caller inspects the count for idempotent no-op handling.
func DeleteUserByClerkID(ctx context.Context, db *gorm.DB, clerkID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("clerk_id = ?", clerkID).
		Delete(&domain.User{})
	return res.RowsAffected, res.Error
}

// ProfileUpdate carries the user-editable profile fields for PATCH /users/me.
// Nil pointers leave the corresponding column untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Plan      *string
}

// UpdateProfile applies a partial profile update to the projection matched by
// clerkID and returns the updated row. Returns ErrNotFound when the
// projection does not exist. An empty update is a read.
func UpdateProfile(ctx context.Context, db *gorm.DB, clerkID string, p ProfileUpdate) (*domain.User, error) {
	updates := map[string]any{}
	if p.FirstName != nil {
		updates["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		updates["last_name"] = *p.LastName
	}
	if p.Plan != nil {
		updates["plan"] = *p.Plan
	}
	if len(updates) > 0 {
		res := db.WithContext(ctx).
			Model(&domain.User{}).
			Where("clerk_id = ?", clerkID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return GetUserByClerkID(ctx, db, clerkID)
}
