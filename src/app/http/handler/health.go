// Package handler adapts the engine's use cases to gin routes. Handlers bind
// and validate the request, call a single use case, and map the result onto
// the response envelope.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	health *usecase.HealthService
	clock  ports.Clock
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(health *usecase.HealthService, clock ports.Clock) *HealthHandler {
	return &HealthHandler{health: health, clock: clock}
}

type livenessResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// Health answers as long as the process can serve HTTP; storage is not touched.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{Status: "ok", Time: h.clock.Now().UTC()})
}

// DetailedHealth checks every registered component. A degraded status
// answers 503 so the instance is pulled from rotation while storage is down.
// GET /health/detailed
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	status := h.health.Check(c.Request.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
