// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints,
// including the structured error envelope, consistent JSON serialization, and
// helpers for common HTTP patterns. Every failure path in the service funnels
// through these helpers so clients always see one response shape.
//
// Conventions:
//   - All error responses return an ErrorResponse carrying the request's
//     correlation id and an HTTP status echo; `code` adds a stable
//     machine-readable taxonomy (see errors.go) and `details` carries
//     per-field validation faults.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx
//     responses are logged with request context for observability.
//   - Stack detail never leaves the process in production builds; in
//     development the recovery middleware includes it for 500s.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "error": "User not found",
//	  "statusCode": 404,
//	  "requestId": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
)

// FieldError describes one invalid field in a validation failure.
type FieldError struct {
	Field   string `json:"field" example:"plan"`
	Message string `json:"message" example:"must be one of: free, pro, enterprise"`
}

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - Error: human-readable description, safe for display to users.
//   - StatusCode: echo of the HTTP status, for clients that lose it in transit.
//   - RequestID: correlation id echoed from X-Request-ID, used to correlate
//     server logs with client-side errors.
//   - Code: optional stable machine-readable string (see errors.go constants).
//   - Details: optional per-field validation errors.
type ErrorResponse struct {
	Error      string       `json:"error" example:"Validation failed"`
	StatusCode int          `json:"statusCode" example:"400"`
	RequestID  string       `json:"requestId" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code       string       `json:"code,omitempty" example:"validation_failed"`
	Details    []FieldError `json:"details,omitempty"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It constructs an ErrorResponse, writes it as JSON with the given HTTP status,
// and calls gin.Context.AbortWithStatusJSON to stop further processing.
//
// Server errors (>=500) are logged using the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string) {
	failWithDetails(c, status, code, msg, nil)
}

func failWithDetails(c *gin.Context, status int, code, msg string, details []FieldError) {
	resp := ErrorResponse{
		Error:      msg,
		StatusCode: status,
		RequestID:  c.Writer.Header().Get("X-Request-ID"),
		Code:       code,
		Details:    details,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup, auth middleware) call Fail to return
// consistent error envelopes without depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
//
// It serializes `body` as JSON with the given HTTP status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
