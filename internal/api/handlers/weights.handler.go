package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/becertain-core/internal/api/middleware"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/internal/store"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// WeightsHandler exposes the per-tenant adaptive signal weighting:
// inspection, operator feedback, and reset to defaults.
type WeightsHandler struct {
	registry *store.TenantRegistry
	log      logger.Logger
}

func NewWeightsHandler(registry *store.TenantRegistry, log logger.Logger) *WeightsHandler {
	return &WeightsHandler{registry: registry, log: log}
}

// feedbackRequest marks one signal family as having pointed at the right
// or wrong root cause.
type feedbackRequest struct {
	Signal     string `json:"signal" binding:"required"`
	WasCorrect bool   `json:"was_correct"`
}

// Get handles GET /api/v1/weights.
func (h *WeightsHandler) Get(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	snapshot := h.registry.State(c.Request.Context(), tenantID).Snapshot()
	c.JSON(http.StatusOK, snapshot)
}

// Feedback handles POST /api/v1/weights/feedback.
func (h *WeightsHandler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feedback: " + err.Error()})
		return
	}
	if !validSignal(req.Signal) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown signal family: " + req.Signal})
		return
	}

	tenantID := middleware.TenantID(c)
	snapshot := h.registry.UpdateWeight(c.Request.Context(), tenantID, req.Signal, req.WasCorrect)
	h.log.Info("signal weight feedback applied",
		"tenant_id", tenantID, "signal", req.Signal, "was_correct", req.WasCorrect)
	c.JSON(http.StatusOK, snapshot)
}

// Reset handles DELETE /api/v1/weights.
func (h *WeightsHandler) Reset(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	snapshot := h.registry.ResetWeights(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, snapshot)
}

func validSignal(signal string) bool {
	for _, s := range models.Signals() {
		if string(s) == signal {
			return true
		}
	}
	return false
}
