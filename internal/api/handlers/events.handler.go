package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/becertain-core/internal/api/middleware"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/internal/store"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// EventsHandler manages the per-tenant deployment-event log the RCA
// deployment correlator reads from.
type EventsHandler struct {
	registry *store.TenantRegistry
	log      logger.Logger
}

func NewEventsHandler(registry *store.TenantRegistry, log logger.Logger) *EventsHandler {
	return &EventsHandler{registry: registry, log: log}
}

// Register handles POST /api/v1/events.
func (h *EventsHandler) Register(c *gin.Context) {
	var event models.DeploymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event: " + err.Error()})
		return
	}
	if event.Service == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service is required"})
		return
	}
	if event.Timestamp <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be a positive unix time"})
		return
	}
	if event.Source == "" {
		event.Source = "api"
	}

	tenantID := middleware.TenantID(c)
	h.registry.RegisterEvent(c.Request.Context(), tenantID, event)
	h.log.Info("deployment event registered",
		"tenant_id", tenantID, "service", event.Service, "version", event.Version)
	c.JSON(http.StatusCreated, gin.H{"status": "registered", "event": event})
}

// List handles GET /api/v1/events with optional start/end unix bounds.
func (h *EventsHandler) List(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	ctx := c.Request.Context()

	startRaw, endRaw := c.Query("start"), c.Query("end")
	if startRaw == "" && endRaw == "" {
		c.JSON(http.StatusOK, gin.H{"events": h.registry.Events(ctx, tenantID)})
		return
	}

	start, err := strconv.ParseFloat(startRaw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + startRaw})
		return
	}
	end, err := strconv.ParseFloat(endRaw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + endRaw})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": h.registry.EventsInWindow(ctx, tenantID, start, end)})
}

// Clear handles DELETE /api/v1/events.
func (h *EventsHandler) Clear(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	h.registry.ClearEvents(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
