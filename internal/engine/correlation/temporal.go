// Package correlation joins anomalies, log bursts and latency findings
// that land inside a shared time window into correlated events.
package correlation

import (
	"math"
	"sort"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/anomaly"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Correlate anchors a window on every anomaly timestamp and burst start,
// gathers the signals inside it, and emits events with at least two
// signals. Latency rows join any anchored window whose span overlaps
// theirs; when the window's metric labels name services, rows are
// additionally filtered to those services.
// windowSeconds <= 0 falls back to the configured width.
func Correlate(metricAnomalies []models.MetricAnomaly, logBursts []models.LogBurst, serviceLatency []models.ServiceLatency, windowSeconds float64, cfg config.CorrelationConfig) []models.CorrelatedEvent {
	if windowSeconds <= 0 {
		windowSeconds = cfg.WindowSeconds
	}

	var anchors []float64
	for _, a := range metricAnomalies {
		if !math.IsNaN(a.Timestamp) && !math.IsInf(a.Timestamp, 0) {
			anchors = append(anchors, a.Timestamp)
		}
	}
	for _, b := range logBursts {
		if !math.IsNaN(b.WindowStart) && !math.IsInf(b.WindowStart, 0) {
			anchors = append(anchors, b.WindowStart)
		}
	}
	if len(anchors) == 0 {
		return nil
	}
	sort.Float64s(anchors)

	used := map[float64]bool{}
	var events []models.CorrelatedEvent

	for _, anchor := range anchors {
		if used[anchor] {
			continue
		}
		wStart := anchor - windowSeconds
		wEnd := anchor + windowSeconds

		var ma []models.MetricAnomaly
		for _, a := range metricAnomalies {
			if a.Timestamp >= wStart && a.Timestamp <= wEnd {
				ma = append(ma, a)
			}
		}
		var lb []models.LogBurst
		for _, b := range logBursts {
			if overlaps(wStart, wEnd, b.WindowStart, b.WindowEnd) {
				lb = append(lb, b)
			}
		}

		var sl []models.ServiceLatency
		if len(ma) > 0 || len(lb) > 0 {
			services := windowServices(ma)
			for _, row := range serviceLatency {
				if len(services) > 0 && !services[row.Service] {
					continue
				}
				if row.WindowStart != nil && row.WindowEnd != nil &&
					!overlaps(wStart, wEnd, *row.WindowStart, *row.WindowEnd) {
					continue
				}
				sl = append(sl, row)
			}
		}

		signalCount := len(ma) + len(lb) + len(sl)
		if signalCount < 2 {
			continue
		}

		metricScore := math.Min(cfg.ScoreMax, float64(len(ma))*cfg.WeightTime)
		logScore := math.Min(cfg.ScoreMax, float64(len(lb))*cfg.WeightLatency)
		traceScore := math.Min(cfg.ErrorsCap, float64(len(sl))*cfg.WeightErrors)
		confidence := stats.Round(math.Min(cfg.ScoreMax, metricScore+logScore+traceScore), 3)

		events = append(events, models.CorrelatedEvent{
			WindowStart:     wStart,
			WindowEnd:       wEnd,
			MetricAnomalies: ma,
			LogBursts:       lb,
			ServiceLatency:  sl,
			SignalCount:     signalCount,
			Confidence:      confidence,
		})

		for _, a := range anchors {
			if a >= wStart && a <= wEnd {
				used[a] = true
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Confidence > events[j].Confidence })
	return events
}

func overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart <= bEnd && bStart <= aEnd
}

func windowServices(anomalies []models.MetricAnomaly) map[string]bool {
	out := map[string]bool{}
	for _, a := range anomalies {
		if svc := anomaly.ServiceFromLabel(a.MetricName); svc != "" {
			out[svc] = true
		}
	}
	return out
}
