package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/models"
)

func anomaly(metric string, ts float64, sev models.Severity) models.MetricAnomaly {
	return models.MetricAnomaly{MetricName: metric, Timestamp: ts, Severity: sev}
}

func TestGroupMergesCloseSameMetric(t *testing.T) {
	anomalies := []models.MetricAnomaly{
		anomaly("cpu", 100, models.SeverityMedium),
		anomaly("cpu", 150, models.SeverityCritical),
		anomaly("cpu", 190, models.SeverityLow),
		anomaly("cpu", 900, models.SeverityHigh),
	}

	groups := GroupMetricAnomalies(anomalies, 120, true)
	require.Len(t, groups, 2)

	assert.Equal(t, 3, groups[0].Count)
	assert.Equal(t, models.SeverityCritical, groups[0].Representative.Severity)
	assert.Equal(t, 1, groups[1].Count)
	assert.Equal(t, 900.0, groups[1].Representative.Timestamp)
}

func TestGroupSplitsByMetric(t *testing.T) {
	anomalies := []models.MetricAnomaly{
		anomaly("cpu", 100, models.SeverityLow),
		anomaly("mem", 101, models.SeverityLow),
	}
	groups := GroupMetricAnomalies(anomalies, 120, true)
	assert.Len(t, groups, 2)

	merged := GroupMetricAnomalies(anomalies, 120, false)
	assert.Len(t, merged, 1)
	assert.Equal(t, 2, merged[0].Count)
}

func TestGroupUnsortedInput(t *testing.T) {
	anomalies := []models.MetricAnomaly{
		anomaly("cpu", 500, models.SeverityLow),
		anomaly("cpu", 100, models.SeverityLow),
		anomaly("cpu", 120, models.SeverityLow),
	}
	groups := GroupMetricAnomalies(anomalies, 60, true)
	require.Len(t, groups, 2)
	assert.Equal(t, 100.0, groups[0].Representative.Timestamp)
	assert.Equal(t, 2, groups[0].Count)
}

func TestRepresentatives(t *testing.T) {
	groups := GroupMetricAnomalies([]models.MetricAnomaly{
		anomaly("cpu", 1, models.SeverityLow),
		anomaly("mem", 2, models.SeverityHigh),
	}, 120, true)
	reps := Representatives(groups)
	require.Len(t, reps, 2)
	assert.Equal(t, "cpu", reps[0].MetricName)
	assert.Equal(t, "mem", reps[1].MetricName)
}

func TestGroupEmpty(t *testing.T) {
	assert.Nil(t, GroupMetricAnomalies(nil, 120, true))
}
