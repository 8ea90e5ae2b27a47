package datasources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// VictoriaMetricsConnector queries a single-node VictoriaMetrics instance.
type VictoriaMetricsConnector struct {
	api *apiClient
}

func NewVictoriaMetricsConnector(baseURL, tenantID string, timeout time.Duration, log logger.Logger) *VictoriaMetricsConnector {
	return &VictoriaMetricsConnector{api: newAPIClient(baseURL, tenantID, "victoriametrics", timeout, log)}
}

func (c *VictoriaMetricsConnector) QueryRange(ctx context.Context, query string, start, end int64, step string) (*models.MetricResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	params.Set("step", step)

	var resp models.MetricResponse
	if err := c.api.getJSON(ctx, "metrics", "/api/v1/query_range", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
