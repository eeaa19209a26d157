package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-user-sync-backend/internal/http/handlers"
	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
)

// SubjectFrom returns the verified subject id stored by RequireAuth. The
// second return value indicates presence.
func SubjectFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxKeyUserID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// RequireAuth returns a Gin middleware that rejects requests without a valid
// bearer credential (401) before any route logic runs. On success, the
// verified subject id is stored in the context for handlers to read via
// SubjectFrom.
//
// Absence of a matching local projection is NOT this middleware's concern:
// handlers translate that into a 404, keeping "invalid credential" and
// "authenticated but unprovisioned" distinguishable.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := TokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "missing or malformed authorization header")
			return
		}
		sub, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "invalid credential")
			return
		}
		c.Set(middleware.CtxKeyUserID, sub)
		c.Next()
	}
}
