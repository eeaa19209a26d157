// Profile endpoints for the authenticated subject.
//
// Both routes sit behind the auth middleware: by the time a handler runs, the
// bearer credential has been verified and the subject id is in the context.
// "No matching projection" is therefore a 404 (authenticated but
// unprovisioned), never a 401.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-user-sync-backend/internal/services"
)

// UpdateUserRequest is the JSON payload for PATCH /api/users/me. Absent
// fields are left unchanged.
type UpdateUserRequest struct {
	// FirstName replaces the given name (1-100 chars).
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=100" example:"Ann"`
	// LastName replaces the family name (1-100 chars).
	LastName *string `json:"lastName" binding:"omitempty,min=1,max=100" example:"Lee"`
	// Plan switches the subscription plan.
	Plan *string `json:"plan" binding:"omitempty,oneof=free pro enterprise" example:"pro"`
}

// GetMe godoc
// @ID          getMe
// @Summary     Get the current user
// @Description Returns the caller's projection, looked up by the verified subject id.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid credential"
// @Failure     404  {object}  handlers.ErrorResponse  "Authenticated but unprovisioned"
// @Router      /api/users/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	sub := subjectID(c)
	if sub == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Unauthorized")
		return
	}

	u, err := h.users.Get(c.Request.Context(), sub)
	if errors.Is(err, services.ErrUserNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update the current user's profile
// @Description Applies a partial profile update; plan is restricted to free, pro, or enterprise.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.UpdateUserRequest  true  "Profile fields to change"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed (details per field)"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid credential"
// @Failure     404  {object}  handlers.ErrorResponse  "Authenticated but unprovisioned"
// @Router      /api/users/me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	sub := subjectID(c)
	if sub == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Unauthorized")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			failWithDetails(c, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", fieldErrors(verrs))
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), sub, services.ProfileUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Plan:      req.Plan,
	})
	switch {
	case err == nil:
		ok(c, http.StatusOK, u)
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
	case errors.Is(err, services.ErrInvalidPlan):
		failWithDetails(c, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed",
			[]FieldError{{Field: "plan", Message: "must be one of: free, pro, enterprise"}})
	case errors.Is(err, services.ErrInvalidName):
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}

// fieldErrors maps validator failures onto the response details array, using
// the JSON field names clients actually sent.
func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   jsonFieldName(fe.Field()),
			Message: validationMessage(fe),
		})
	}
	return out
}

// jsonFieldName lowercases the leading rune of a struct field name, matching
// this package's camelCase JSON tags.
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	r := []rune(field)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		return "must be between 1 and 100 characters"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
