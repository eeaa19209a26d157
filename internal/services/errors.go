// Package services defines the business logic for webhook-driven user
// synchronization and profile management. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrUserNotFound indicates that no projection exists for the subject's
	// external id. Distinct from an invalid credential: the caller was
	// authenticated but never provisioned.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoEmail is returned when a subject event carries no email address
	// and the operation needs one to materialize a projection.
	ErrNoEmail = errors.New("no email address provided")

	// ErrInvalidPlan is returned when a plan value is outside the allowed
	// set (free, pro, enterprise).
	ErrInvalidPlan = errors.New("plan must be one of: free, pro, enterprise")

	// ErrInvalidName is returned when a profile name field is empty or
	// exceeds 100 characters.
	ErrInvalidName = errors.New("name fields must be 1-100 characters")
)
