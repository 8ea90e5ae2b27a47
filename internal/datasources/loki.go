package datasources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// LokiConnector queries a Loki instance's query_range endpoint.
type LokiConnector struct {
	api *apiClient
}

func NewLokiConnector(baseURL, tenantID string, timeout time.Duration, log logger.Logger) *LokiConnector {
	return &LokiConnector{api: newAPIClient(baseURL, tenantID, "loki", timeout, log)}
}

func (c *LokiConnector) QueryRange(ctx context.Context, query string, startNs, endNs int64, limit int) (*models.LogResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(startNs, 10))
	params.Set("end", strconv.FormatInt(endNs, 10))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp models.LogResponse
	if err := c.api.getJSON(ctx, "logs", "/loki/api/v1/query_range", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
