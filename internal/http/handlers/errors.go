// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes are reserved for faults that cannot be conveyed
//     by status alone (e.g., webhook_not_configured vs. a plain 500).
//
// Example response:
//
//	{
//	  "error": "Invalid webhook signature",
//	  "statusCode": 400,
//	  "requestId": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_signature"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidationFailed     = "validation_failed"
	ErrCodeMissingHeaders       = "missing_webhook_headers"
	ErrCodeInvalidSignature     = "invalid_signature"
	ErrCodeNoEmail              = "no_email_address"
	ErrCodeWebhookNotConfigured = "webhook_not_configured"
	ErrCodeProcessingFailed     = "webhook_processing_failed"
	ErrCodeNotReady             = "not_ready"
)
