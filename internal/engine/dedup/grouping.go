// Package dedup collapses near-duplicate anomalies into groups keyed by
// metric and temporal proximity.
package dedup

import (
	"sort"

	"github.com/platformbuilds/becertain-core/internal/models"
)

// AnomalyGroup holds the members of one duplicate run and the member
// chosen to represent it (the most severe one seen).
type AnomalyGroup struct {
	Representative models.MetricAnomaly
	Members        []models.MetricAnomaly
	Count          int
}

// GroupMetricAnomalies walks anomalies in timestamp order and merges each
// into the open group when it shares the metric (if byMetric) and sits
// within timeWindow of the representative.
func GroupMetricAnomalies(anomalies []models.MetricAnomaly, timeWindow float64, byMetric bool) []AnomalyGroup {
	if len(anomalies) == 0 {
		return nil
	}

	sorted := make([]models.MetricAnomaly, len(anomalies))
	copy(sorted, anomalies)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var groups []AnomalyGroup
	current := AnomalyGroup{Representative: sorted[0], Members: []models.MetricAnomaly{sorted[0]}, Count: 1}

	for _, a := range sorted[1:] {
		rep := current.Representative
		sameMetric := !byMetric || a.MetricName == rep.MetricName
		closeInTime := abs(a.Timestamp-rep.Timestamp) <= timeWindow

		if sameMetric && closeInTime {
			current.Members = append(current.Members, a)
			current.Count++
			if a.Severity.Weight() > rep.Severity.Weight() {
				current.Representative = a
			}
			continue
		}
		groups = append(groups, current)
		current = AnomalyGroup{Representative: a, Members: []models.MetricAnomaly{a}, Count: 1}
	}

	return append(groups, current)
}

// Representatives flattens groups back to one anomaly each.
func Representatives(groups []AnomalyGroup) []models.MetricAnomaly {
	out := make([]models.MetricAnomaly, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Representative)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
