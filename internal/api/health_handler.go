package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finlink/internal/services"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	healthService *services.HealthService
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// RegisterRoutes registers health check routes.
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	health := router.Group("/health")
	{
		health.GET("", h.HealthCheck)
		health.GET("/live", h.Liveness)
		health.GET("/ready", h.Readiness)
	}
}

// HealthCheck runs every registered component probe.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	response := h.healthService.Check(ctx)
	status := http.StatusOK
	if response.Status == services.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// Liveness answers as long as the process is serving requests.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness checks dependencies the same way HealthCheck does but with a
// tighter timeout, suited for load balancer probes.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := h.healthService.Check(ctx)
	if response.Status == services.HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": response.Checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
