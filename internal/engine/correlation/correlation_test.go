package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
)

func correlationConfig() config.CorrelationConfig {
	return config.CorrelationConfig{
		MaxLagSeconds: 120.0,
		WindowSeconds: 60.0,
		WeightTime:    0.25,
		WeightLatency: 0.40,
		WeightErrors:  0.35,
		ErrorsCap:     0.35,
		ScoreMax:      1.0,
	}
}

func ma(ts float64, metric string) models.MetricAnomaly {
	return models.MetricAnomaly{MetricName: metric, Timestamp: ts, Severity: models.SeverityHigh}
}

func lb(start, end float64) models.LogBurst {
	return models.LogBurst{WindowStart: start, WindowEnd: end, Ratio: 3.0, Severity: models.SeverityMedium}
}

func TestCorrelateJoinsSignalsInWindow(t *testing.T) {
	anomalies := []models.MetricAnomaly{ma(100, "errors{service=checkout}"), ma(130, "latency{service=checkout}")}
	bursts := []models.LogBurst{lb(90, 100)}

	events := Correlate(anomalies, bursts, nil, 60, correlationConfig())
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, 3, e.SignalCount)
	assert.Len(t, e.MetricAnomalies, 2)
	assert.Len(t, e.LogBursts, 1)
	// 2*0.25 + 1*0.40
	assert.InDelta(t, 0.9, e.Confidence, 1e-9)
	// Window anchors on the earliest anchor time, the burst start at 90.
	assert.Equal(t, 30.0, e.WindowStart)
	assert.Equal(t, 150.0, e.WindowEnd)
}

func TestCorrelateRequiresTwoSignals(t *testing.T) {
	events := Correlate([]models.MetricAnomaly{ma(100, "m")}, nil, nil, 60, correlationConfig())
	assert.Empty(t, events)
}

func TestCorrelateLatencyNeedsServiceMatch(t *testing.T) {
	anomalies := []models.MetricAnomaly{ma(100, "errors{service=checkout}"), ma(110, "errors{service=checkout}")}
	latency := []models.ServiceLatency{
		{Service: "checkout", Severity: models.SeverityHigh},
		{Service: "unrelated", Severity: models.SeverityHigh},
	}

	events := Correlate(anomalies, nil, latency, 60, correlationConfig())
	require.Len(t, events, 1)
	require.Len(t, events[0].ServiceLatency, 1)
	assert.Equal(t, "checkout", events[0].ServiceLatency[0].Service)
}

func TestCorrelateBurstAnchoredWindowAttachesLatency(t *testing.T) {
	// No metric anomalies: the window is anchored by bursts alone, so no
	// service filter applies and overlapping latency rows still join.
	bursts := []models.LogBurst{lb(90, 100)}
	latency := []models.ServiceLatency{
		{Service: "checkout", Severity: models.SeverityHigh},
	}

	events := Correlate(nil, bursts, latency, 60, correlationConfig())
	require.Len(t, events, 1)
	require.Len(t, events[0].ServiceLatency, 1)
	assert.Equal(t, "checkout", events[0].ServiceLatency[0].Service)
	assert.Equal(t, 2, events[0].SignalCount)
}

func TestCorrelateLatencyWindowMustOverlap(t *testing.T) {
	anomalies := []models.MetricAnomaly{ma(100, "errors{service=checkout}"), ma(110, "errors{service=checkout}")}
	ws, we := 5000.0, 6000.0
	latency := []models.ServiceLatency{
		{Service: "checkout", WindowStart: &ws, WindowEnd: &we, Severity: models.SeverityHigh},
	}

	events := Correlate(anomalies, nil, latency, 60, correlationConfig())
	require.Len(t, events, 1)
	assert.Empty(t, events[0].ServiceLatency)
}

func TestCorrelateConsumesAnchorsOnce(t *testing.T) {
	anomalies := []models.MetricAnomaly{ma(100, "a"), ma(110, "b"), ma(120, "c")}
	events := Correlate(anomalies, nil, nil, 60, correlationConfig())
	require.Len(t, events, 1, "anchors inside the first window should not spawn more events")
}

func TestCorrelateSortsByConfidence(t *testing.T) {
	anomalies := []models.MetricAnomaly{
		ma(100, "a"), ma(110, "b"),
		ma(10000, "c"), ma(10010, "d"), ma(10020, "e"),
	}
	events := Correlate(anomalies, nil, nil, 60, correlationConfig())
	require.Len(t, events, 2)
	assert.GreaterOrEqual(t, events[0].Confidence, events[1].Confidence)
	assert.Len(t, events[0].MetricAnomalies, 3)
}

func TestLinkLogsToMetrics(t *testing.T) {
	anomalies := []models.MetricAnomaly{ma(100, "m1"), ma(150, "m2")}
	bursts := []models.LogBurst{lb(40, 50), lb(95, 105)}

	links := LinkLogsToMetrics(anomalies, bursts, 120, correlationConfig())
	require.Len(t, links, 4)

	// Strongest link first: lag 5 from burst at 95 to anomaly at 100.
	assert.Equal(t, "m1", links[0].MetricName)
	assert.Equal(t, 5.0, links[0].LagSeconds)
	assert.InDelta(t, 0.958, links[0].Strength, 1e-9)

	for _, l := range links {
		assert.GreaterOrEqual(t, l.LagSeconds, 0.0)
		assert.LessOrEqual(t, l.LagSeconds, 120.0)
	}
}

func TestLinkLogsToMetricsNegativeLagExcluded(t *testing.T) {
	anomalies := []models.MetricAnomaly{ma(50, "m")}
	bursts := []models.LogBurst{lb(60, 70)}
	assert.Empty(t, LinkLogsToMetrics(anomalies, bursts, 120, correlationConfig()))
}
