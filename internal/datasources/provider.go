// Package datasources holds the connectors for the observability backends
// (Loki logs, Mimir or VictoriaMetrics metrics, Tempo traces) and the
// tenant-scoped provider that fronts them.
package datasources

import (
	"context"

	"github.com/platformbuilds/becertain-core/internal/models"
)

// LogsConnector queries a log backend over a nanosecond time range.
type LogsConnector interface {
	QueryRange(ctx context.Context, query string, startNs, endNs int64, limit int) (*models.LogResponse, error)
}

// MetricsConnector runs a range query against a Prometheus-compatible
// metrics backend.
type MetricsConnector interface {
	QueryRange(ctx context.Context, query string, start, end int64, step string) (*models.MetricResponse, error)
}

// Scraper is an optional metrics-connector capability: fetching the
// backend's own exposition page as a last-resort data source.
type Scraper interface {
	Scrape(ctx context.Context) (string, error)
}

// TracesConnector searches a trace backend with attribute filters.
type TracesConnector interface {
	QueryRange(ctx context.Context, filters map[string]string, start, end int64, limit int) (*models.TraceResponse, error)
}

// Provider bundles one tenant's connectors behind a single query surface.
type Provider struct {
	tenantID string
	logs     LogsConnector
	metrics  MetricsConnector
	traces   TracesConnector
}

func NewProviderWith(tenantID string, logs LogsConnector, metrics MetricsConnector, traces TracesConnector) *Provider {
	return &Provider{tenantID: tenantID, logs: logs, metrics: metrics, traces: traces}
}

func (p *Provider) TenantID() string { return p.tenantID }

func (p *Provider) QueryLogs(ctx context.Context, query string, startNs, endNs int64, limit int) (*models.LogResponse, error) {
	return p.logs.QueryRange(ctx, query, startNs, endNs, limit)
}

func (p *Provider) QueryMetrics(ctx context.Context, query string, start, end int64, step string) (*models.MetricResponse, error) {
	return p.metrics.QueryRange(ctx, query, start, end, step)
}

func (p *Provider) QueryTraces(ctx context.Context, filters map[string]string, start, end int64, limit int) (*models.TraceResponse, error) {
	return p.traces.QueryRange(ctx, filters, start, end, limit)
}

// Scrape exposes the metrics connector's scrape capability when it has one.
func (p *Provider) Scrape(ctx context.Context) (string, error) {
	scraper, ok := p.metrics.(Scraper)
	if !ok {
		return "", ErrUnavailable
	}
	return scraper.Scrape(ctx)
}

// CanScrape reports whether the metrics backend supports exposition scraping.
func (p *Provider) CanScrape() bool {
	_, ok := p.metrics.(Scraper)
	return ok
}
