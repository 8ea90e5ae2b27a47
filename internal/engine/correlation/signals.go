package correlation

import (
	"sort"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// LinkLogsToMetrics pairs each metric anomaly with every log burst that
// precedes it within the lag bound. Strength falls off linearly with lag.
// maxLagSeconds <= 0 falls back to the configured bound.
func LinkLogsToMetrics(metricAnomalies []models.MetricAnomaly, logBursts []models.LogBurst, maxLagSeconds float64, cfg config.CorrelationConfig) []models.LogMetricLink {
	if maxLagSeconds <= 0 {
		maxLagSeconds = cfg.MaxLagSeconds
	}

	var links []models.LogMetricLink
	for _, a := range metricAnomalies {
		for _, b := range logBursts {
			lag := a.Timestamp - b.WindowStart
			if lag < 0 || lag > maxLagSeconds {
				continue
			}
			links = append(links, models.LogMetricLink{
				MetricName:      a.MetricName,
				MetricTimestamp: a.Timestamp,
				LogStream:       "unknown",
				LogBurstStart:   b.WindowStart,
				LagSeconds:      stats.Round(lag, 1),
				Strength:        stats.Round(1.0-lag/maxLagSeconds, 3),
			})
		}
	}

	sort.SliceStable(links, func(i, j int) bool { return links[i].Strength > links[j].Strength })
	return links
}
