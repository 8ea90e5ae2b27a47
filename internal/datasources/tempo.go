package datasources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// TempoConnector searches a Tempo instance's trace API.
type TempoConnector struct {
	api *apiClient
}

func NewTempoConnector(baseURL, tenantID string, timeout time.Duration, log logger.Logger) *TempoConnector {
	return &TempoConnector{api: newAPIClient(baseURL, tenantID, "tempo", timeout, log)}
}

func (c *TempoConnector) QueryRange(ctx context.Context, filters map[string]string, start, end int64, limit int) (*models.TraceResponse, error) {
	params := url.Values{}
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))
	for key, value := range filters {
		params.Set(key, value)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp models.TraceResponse
	if err := c.api.getJSON(ctx, "traces", "/api/search", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
