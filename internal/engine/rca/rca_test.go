package rca

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/events"
	"github.com/platformbuilds/becertain-core/internal/engine/topology"
	"github.com/platformbuilds/becertain-core/internal/models"
)

func rcaConfig() config.RCAConfig {
	return config.RCAConfig{
		WindowSeconds:            300,
		EventConfidenceThreshold: 0.3,
		DeployWindowSeconds:      300,
		DeployScoreCutoff:        0.6,
		ScoreCap:                 0.99,
		ErrorPropMax:             0.95,
		ErrorPropBase:            0.5,
		ErrorPropAffectedFactor:  0.1,
		LogPatternScore:          0.6,
		SliceLimit:               2,
		SeverityWeightThreshold:  3,
		MinDisplayConfidence:     0.05,
	}
}

func severityConfig() config.SeverityConfig {
	return config.SeverityConfig{ScoreMedium: 0.3, ScoreHigh: 0.6, ScoreCritical: 0.85}
}

func correlationConfig() config.CorrelationConfig {
	return config.CorrelationConfig{ScoreMax: 1.0}
}

func TestScoreDeploymentCorrelation(t *testing.T) {
	deployments := []models.DeploymentEvent{
		{Service: "api", Timestamp: 100, Version: "v2"},
		{Service: "worker", Timestamp: 900, Version: "w1"},
	}

	// lag 60 inside a 300s window
	assert.InDelta(t, 0.8, ScoreDeploymentCorrelation(160, deployments, 300), 1e-9)
	// exactly at the deployment
	assert.InDelta(t, 1.0, ScoreDeploymentCorrelation(100, deployments, 300), 1e-9)
	// nothing inside the window
	assert.Equal(t, 0.0, ScoreDeploymentCorrelation(500, deployments, 300))
	assert.Equal(t, 0.0, ScoreDeploymentCorrelation(160, nil, 300))
}

func TestScoreErrorPropagation(t *testing.T) {
	cfg := rcaConfig()

	assert.Equal(t, 0.0, ScoreErrorPropagation(nil, cfg))

	two := []models.ErrorPropagation{{SourceService: "db", AffectedServices: []string{"api", "frontend"}}}
	assert.InDelta(t, 0.7, ScoreErrorPropagation(two, cfg), 1e-9)

	wide := []models.ErrorPropagation{{
		SourceService:    "db",
		AffectedServices: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
	}}
	assert.InDelta(t, cfg.ErrorPropMax, ScoreErrorPropagation(wide, cfg), 1e-9, "score is capped")
}

func TestScoreCorrelatedEventGrowsWithEvidence(t *testing.T) {
	cfg := rcaConfig()

	thin := models.CorrelatedEvent{
		MetricAnomalies: []models.MetricAnomaly{{MetricName: "cpu", Severity: models.SeverityLow}},
		Confidence:      0.5,
	}
	rich := models.CorrelatedEvent{
		MetricAnomalies: []models.MetricAnomaly{
			{MetricName: "cpu", Severity: models.SeverityCritical},
			{MetricName: "mem", Severity: models.SeverityHigh},
		},
		LogBursts:      []models.LogBurst{{WindowStart: 10}},
		ServiceLatency: []models.ServiceLatency{{Service: "api"}},
		Confidence:     0.9,
	}

	thinScore := ScoreCorrelatedEvent(thin, cfg, 1.0)
	richScore := ScoreCorrelatedEvent(rich, cfg, 1.0)
	assert.Greater(t, richScore, thinScore)
	assert.LessOrEqual(t, richScore, 1.0)
	assert.Greater(t, thinScore, 0.0)

	capped := ScoreCorrelatedEvent(rich, cfg, 0.2)
	assert.Equal(t, 0.2, capped)
}

func TestScoreCorrelatedEventSeverityBoost(t *testing.T) {
	cfg := rcaConfig()
	low := models.CorrelatedEvent{
		MetricAnomalies: []models.MetricAnomaly{{MetricName: "cpu", Severity: models.SeverityLow}},
		Confidence:      0.5,
	}
	critical := low
	critical.MetricAnomalies = []models.MetricAnomaly{{MetricName: "cpu", Severity: models.SeverityCritical}}

	assert.Greater(t, ScoreCorrelatedEvent(critical, cfg, 1.0), ScoreCorrelatedEvent(low, cfg, 1.0))
}

func TestCategorize(t *testing.T) {
	cfg := rcaConfig()
	deployments := []models.DeploymentEvent{{Service: "api", Timestamp: 100, Version: "v2"}}

	nearDeploy := models.CorrelatedEvent{WindowStart: 150}
	assert.Equal(t, models.CategoryDeployment, Categorize(nearDeploy, deployments, cfg))

	memory := models.CorrelatedEvent{
		WindowStart:     5000,
		MetricAnomalies: []models.MetricAnomaly{{MetricName: "container_memory_usage_bytes"}},
	}
	assert.Equal(t, models.CategoryResourceExhaustion, Categorize(memory, deployments, cfg))

	latency := models.CorrelatedEvent{
		WindowStart:    5000,
		ServiceLatency: []models.ServiceLatency{{Service: "api"}},
	}
	assert.Equal(t, models.CategoryDependencyFailure, Categorize(latency, deployments, cfg))

	traffic := models.CorrelatedEvent{
		WindowStart:     5000,
		MetricAnomalies: []models.MetricAnomaly{{MetricName: "http_request_total"}},
	}
	assert.Equal(t, models.CategoryTrafficSurge, Categorize(traffic, deployments, cfg))

	assert.Equal(t, models.CategoryUnknown, Categorize(models.CorrelatedEvent{WindowStart: 5000}, deployments, cfg))
}

func TestGenerateCorrelatedEventCause(t *testing.T) {
	registry := events.NewRegistry()
	registry.Register(models.DeploymentEvent{Service: "api", Timestamp: 90, Version: "v7"})

	graph := topology.NewDependencyGraph()
	graph.AddCall("api", "db")

	in := Inputs{
		CorrelatedEvents: []models.CorrelatedEvent{{
			WindowStart: 100,
			WindowEnd:   220,
			MetricAnomalies: []models.MetricAnomaly{
				{MetricName: "cpu_usage", Severity: models.SeverityCritical},
			},
			LogBursts:      []models.LogBurst{{WindowStart: 110}},
			ServiceLatency: []models.ServiceLatency{{Service: "api"}},
			SignalCount:    3,
			Confidence:     0.9,
		}},
		Graph:         graph,
		EventRegistry: registry,
	}

	causes := Generate(in, rcaConfig(), correlationConfig(), severityConfig(), 3)
	require.Len(t, causes, 1)

	c := causes[0]
	assert.Equal(t, models.CategoryDeployment, c.Category)
	assert.Contains(t, c.Hypothesis, "deployment of api v7")
	assert.Contains(t, c.ContributingSignals, "metric:cpu_usage")
	assert.Contains(t, c.ContributingSignals, "log:bursts")
	assert.Contains(t, c.ContributingSignals, "trace:api")
	assert.Equal(t, []string{"db"}, c.AffectedServices)
	require.NotNil(t, c.Deployment)
	assert.Equal(t, "v7", c.Deployment.Version)
	assert.Contains(t, c.RecommendedAction, "Rollback")
}

func TestGenerateSkipsLowConfidenceEvents(t *testing.T) {
	in := Inputs{
		CorrelatedEvents: []models.CorrelatedEvent{{
			WindowStart: 100,
			Confidence:  0.1,
		}},
	}
	assert.Nil(t, Generate(in, rcaConfig(), correlationConfig(), severityConfig(), 3))
}

func TestGenerateErrorPropagationCause(t *testing.T) {
	graph := topology.NewDependencyGraph()
	graph.AddCall("frontend", "api")
	graph.AddCall("api", "db")

	in := Inputs{
		ErrorPropagation: []models.ErrorPropagation{{
			SourceService:    "db",
			AffectedServices: []string{"api", "frontend"},
			ErrorRate:        0.4,
		}},
		Graph: graph,
	}

	causes := Generate(in, rcaConfig(), correlationConfig(), severityConfig(), 3)
	require.Len(t, causes, 1)

	c := causes[0]
	assert.Equal(t, models.CategoryErrorPropagation, c.Category)
	assert.InDelta(t, 0.7, c.Confidence, 1e-9)
	assert.Contains(t, c.Hypothesis, "db")
	assert.Contains(t, c.AffectedServices, "frontend")
	assert.Contains(t, c.ContributingSignals, "trace:propagation:db")
}

func TestGenerateLogPatternCause(t *testing.T) {
	in := Inputs{
		LogPatterns: []models.LogPattern{
			{Pattern: "connection refused to <_>", Count: 40, Severity: models.SeverityCritical},
			{Pattern: "slow query <_>", Count: 5, Severity: models.SeverityMedium},
		},
	}

	causes := Generate(in, rcaConfig(), correlationConfig(), severityConfig(), 3)
	require.Len(t, causes, 1, "medium pattern stays below the weight threshold")
	assert.Contains(t, causes[0].Hypothesis, "connection refused")
	assert.Equal(t, 0.6, causes[0].Confidence)
}

func TestGenerateLowConfidenceFallback(t *testing.T) {
	cfg := rcaConfig()
	cfg.MinDisplayConfidence = 0.9

	in := Inputs{
		LogPatterns: []models.LogPattern{
			{Pattern: "fatal error in <_>", Severity: models.SeverityCritical},
		},
	}

	causes := Generate(in, cfg, correlationConfig(), severityConfig(), 3)
	require.Len(t, causes, 1)
	assert.True(t, strings.HasPrefix(causes[0].Hypothesis, "[low_confidence] "))
}

func TestGenerateSortsByConfidence(t *testing.T) {
	in := Inputs{
		ErrorPropagation: []models.ErrorPropagation{{
			SourceService:    "db",
			AffectedServices: []string{"a", "b", "c"},
		}},
		LogPatterns: []models.LogPattern{
			{Pattern: "oom killed <_>", Severity: models.SeverityCritical},
		},
	}

	causes := Generate(in, rcaConfig(), correlationConfig(), severityConfig(), 3)
	require.Len(t, causes, 2)
	assert.GreaterOrEqual(t, causes[0].Confidence, causes[1].Confidence)
	assert.Equal(t, models.CategoryErrorPropagation, causes[0].Category)
}

func TestDedupeByHypothesis(t *testing.T) {
	causes := []Cause{
		{Hypothesis: "h1", Confidence: 0.4},
		{Hypothesis: "h2", Confidence: 0.6},
		{Hypothesis: "h1", Confidence: 0.8},
	}

	out := DedupeByHypothesis(causes)
	require.Len(t, out, 2)
	assert.Equal(t, "h1", out[0].Hypothesis)
	assert.Equal(t, 0.8, out[0].Confidence)
	assert.Equal(t, "h2", out[1].Hypothesis)

	assert.Empty(t, DedupeByHypothesis(nil))
}
