package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "loki", cfg.Datasources.LogsBackend)
	assert.Equal(t, "mimir", cfg.Datasources.MetricsBackend)
	assert.Equal(t, "tempo", cfg.Datasources.TracesBackend)

	assert.Equal(t, 2.5, cfg.Engine.Anomaly.ZScoreThreshold)
	assert.Equal(t, 3.5, cfg.Engine.Anomaly.MADThreshold)
	assert.Equal(t, 5.0, cfg.Engine.Anomaly.CUSUMThreshold)
	assert.Equal(t, 8, cfg.Engine.Anomaly.MinSamples)

	assert.Equal(t, 86400, cfg.Store.BaselineTTL)
	assert.Equal(t, 604800, cfg.Store.GrangerTTL)
	assert.Equal(t, 2592000, cfg.Store.EventsTTL)
	assert.Equal(t, 500, cfg.Store.MaxEvents)

	assert.Equal(t, 0.25, cfg.Engine.Correlation.WeightTime)
	assert.Equal(t, 0.40, cfg.Engine.Correlation.WeightLatency)
	assert.Equal(t, 0.35, cfg.Engine.Correlation.WeightErrors)
}

func TestLoadStructuredDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Engine.SLO.BurnWindows, 4)
	assert.Equal(t, "1h", cfg.Engine.SLO.BurnWindows[0].Label)
	assert.Equal(t, 14.4, cfg.Engine.SLO.BurnWindows[0].Threshold)
	assert.Equal(t, "critical", cfg.Engine.SLO.BurnWindows[0].Severity)

	require.Len(t, cfg.Engine.Logs.BurstRatioBands, 3)
	assert.Equal(t, 10.0, cfg.Engine.Logs.BurstRatioBands[0].Ratio)

	assert.Len(t, cfg.Engine.Analyzer.DefaultMetricQueries, 8)
	assert.InDelta(t, 1.0, cfg.Engine.Registry.DefaultWeights["metrics"]+
		cfg.Engine.Registry.DefaultWeights["logs"]+
		cfg.Engine.Registry.DefaultWeights["traces"], 1e-9)

	require.Contains(t, cfg.Engine.Causal.BayesianPriors, "deployment")
	assert.Equal(t, 0.35, cfg.Engine.Causal.BayesianPriors["deployment"])
	assert.Equal(t, 0.95, cfg.Engine.Causal.BayesianLikelihoods["deployment"]["has_deployment_event"])
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Datasources.MetricsBackend = "influx"
	assert.Error(t, cfg.Validate())

	cfg.Datasources.MetricsBackend = "victoriametrics"
	cfg.Datasources.VictoriaURL = ""
	assert.Error(t, cfg.Validate())

	cfg.Datasources.VictoriaURL = "http://vm:8428"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadBlend(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Engine.Ranking.ConfidenceBlend = 0.7
	assert.Error(t, cfg.Validate())
}
