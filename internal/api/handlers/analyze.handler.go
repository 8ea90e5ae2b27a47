package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/becertain-core/internal/api/middleware"
	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/datasources"
	"github.com/platformbuilds/becertain-core/internal/engine/analyzer"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// AnalyzeHandler runs RCA analyses. Providers are built lazily per tenant
// and reused; each one pins the tenant header on every backend request.
type AnalyzeHandler struct {
	analyzer *analyzer.Analyzer
	cfg      *config.Config
	log      logger.Logger

	mu        sync.Mutex
	providers map[string]*datasources.Provider
}

func NewAnalyzeHandler(a *analyzer.Analyzer, cfg *config.Config, log logger.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:  a,
		cfg:       cfg,
		log:       log,
		providers: make(map[string]*datasources.Provider),
	}
}

// Analyze handles POST /api/v1/analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.TenantID == "" {
		req.TenantID = middleware.TenantID(c)
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, err := h.providerFor(req.TenantID)
	if err != nil {
		h.log.Error("provider construction failed", "tenant_id", req.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "datasource configuration error"})
		return
	}

	report := h.analyzer.Run(c.Request.Context(), provider, &req)
	c.JSON(http.StatusOK, report)
}

func (h *AnalyzeHandler) providerFor(tenantID string) (*datasources.Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if provider, ok := h.providers[tenantID]; ok {
		return provider, nil
	}
	provider, err := datasources.NewProvider(h.cfg.Datasources, tenantID, h.log)
	if err != nil {
		return nil, err
	}
	h.providers[tenantID] = provider
	return provider, nil
}
