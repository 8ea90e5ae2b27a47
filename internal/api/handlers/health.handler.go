package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// HealthHandler serves liveness and readiness probes. Readiness exercises
// a state-store round trip.
type HealthHandler struct {
	cfg *config.Config
	kv  cache.KVStore
	log logger.Logger
}

func NewHealthHandler(cfg *config.Config, kv cache.KVStore, log logger.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, kv: kv, log: log}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"environment": h.cfg.Environment,
		"backends": gin.H{
			"logs":    h.cfg.Datasources.LogsBackend,
			"metrics": h.cfg.Datasources.MetricsBackend,
			"traces":  h.cfg.Datasources.TracesBackend,
		},
	})
}

// ReadinessCheck handles GET /ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx := c.Request.Context()
	probe := "health:probe"
	if err := h.kv.Set(ctx, probe, time.Now().Unix(), time.Minute); err != nil {
		h.log.Warn("readiness probe store write failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unavailable"})
		return
	}
	if _, err := h.kv.Get(ctx, probe); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unreadable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
