package datasources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// MimirConnector queries a Mimir instance through its Prometheus-compatible
// API. It also supports exposition scraping as a fallback data source.
type MimirConnector struct {
	api *apiClient
}

func NewMimirConnector(baseURL, tenantID string, timeout time.Duration, log logger.Logger) *MimirConnector {
	return &MimirConnector{api: newAPIClient(baseURL, tenantID, "mimir", timeout, log)}
}

func (c *MimirConnector) QueryRange(ctx context.Context, query string, start, end int64, step string) (*models.MetricResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	params.Set("step", step)

	var resp models.MetricResponse
	if err := c.api.getJSON(ctx, "metrics", "/prometheus/api/v1/query_range", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *MimirConnector) Scrape(ctx context.Context) (string, error) {
	return c.api.getText(ctx, "metrics", "/metrics")
}
