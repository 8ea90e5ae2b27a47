package datasources

import (
	"fmt"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// NewProvider builds a tenant-scoped provider from the configured backends.
func NewProvider(cfg config.DatasourcesConfig, tenantID string, log logger.Logger) (*Provider, error) {
	timeout := cfg.Timeout()

	var logs LogsConnector
	switch cfg.LogsBackend {
	case "loki":
		logs = NewLokiConnector(cfg.LokiURL, tenantID, timeout, log)
	default:
		return nil, fmt.Errorf("unsupported logs backend: %s", cfg.LogsBackend)
	}

	var metrics MetricsConnector
	switch cfg.MetricsBackend {
	case "mimir":
		metrics = NewMimirConnector(cfg.MimirURL, tenantID, timeout, log)
	case "victoriametrics":
		metrics = NewVictoriaMetricsConnector(cfg.VictoriaURL, tenantID, timeout, log)
	default:
		return nil, fmt.Errorf("unsupported metrics backend: %s", cfg.MetricsBackend)
	}

	var traces TracesConnector
	switch cfg.TracesBackend {
	case "tempo":
		traces = NewTempoConnector(cfg.TempoURL, tenantID, timeout, log)
	default:
		return nil, fmt.Errorf("unsupported traces backend: %s", cfg.TracesBackend)
	}

	return NewProviderWith(tenantID, logs, metrics, traces), nil
}
