// Health and readiness probes. Both bypass rate limiting and auth: an
// operational probe must never be throttled or challenged.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-user-sync-backend/internal/repo"
)

// HealthResponse is the payload of the liveness probe.
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Timestamp string `json:"timestamp" example:"2025-01-02T15:04:05Z"`
}

// ReadyResponse is the payload of the readiness probe.
type ReadyResponse struct {
	Status    string `json:"status" example:"ready"`
	Database  string `json:"database" example:"connected"`
	Timestamp string `json:"timestamp" example:"2025-01-02T15:04:05Z"`
}

// Health godoc
// @ID          health
// @Summary     Basic health check
// @Description Liveness only; touches no dependencies.
// @Tags        Health
// @Produce     json
//
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready godoc
// @ID          ready
// @Summary     Readiness check with database connectivity
// @Description Pings the database; 503 while the store is unreachable.
// @Tags        Health
// @Produce     json
//
// @Success     200  {object}  handlers.ReadyResponse
// @Failure     503  {object}  handlers.ReadyResponse
// @Router      /ready [get]
func (h *Handlers) Ready(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := repo.Ping(c.Request.Context(), h.db); err != nil {
		ok(c, http.StatusServiceUnavailable, ReadyResponse{
			Status:    "not ready",
			Database:  "disconnected",
			Timestamp: now,
		})
		return
	}
	ok(c, http.StatusOK, ReadyResponse{
		Status:    "ready",
		Database:  "connected",
		Timestamp: now,
	})
}
