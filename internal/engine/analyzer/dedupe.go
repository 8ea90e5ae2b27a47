package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/engine/ml"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// dedupeMetricAnomalies collapses anomalies that share a metric, a
// whole-second timestamp and a change type, keeping the strongest. The
// same sample often surfaces from overlapping queries.
func dedupeMetricAnomalies(anomalies []models.MetricAnomaly) []models.MetricAnomaly {
	type key struct {
		metric     string
		second     int64
		changeType models.ChangeType
	}
	best := map[key]models.MetricAnomaly{}
	for _, a := range anomalies {
		k := key{metric: a.MetricName, second: int64(math.Round(a.Timestamp)), changeType: a.ChangeType}
		existing, ok := best[k]
		if !ok || stronger(a, existing) {
			best[k] = a
		}
	}
	out := make([]models.MetricAnomaly, 0, len(best))
	for _, a := range best {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out
}

func stronger(a, b models.MetricAnomaly) bool {
	if a.Severity.Weight() != b.Severity.Weight() {
		return a.Severity.Weight() > b.Severity.Weight()
	}
	return math.Abs(a.ZScore) > math.Abs(b.ZScore)
}

// dedupeChangePoints keeps the largest-magnitude change point per
// (metric, second, change type).
func dedupeChangePoints(points []models.ChangePoint) []models.ChangePoint {
	type key struct {
		metric     string
		second     int64
		changeType models.ChangeType
	}
	best := map[key]models.ChangePoint{}
	for _, p := range points {
		k := key{metric: p.MetricName, second: int64(math.Round(p.Timestamp)), changeType: p.ChangeType}
		existing, ok := best[k]
		if !ok || math.Abs(p.Magnitude) > math.Abs(existing.Magnitude) {
			best[k] = p
		}
	}
	out := make([]models.ChangePoint, 0, len(best))
	for _, p := range best {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out
}

// dedupeForecasts keeps one forecast per metric, preferring higher
// severity then steeper slope.
func dedupeForecasts(forecasts []models.TrajectoryForecast) []models.TrajectoryForecast {
	best := map[string]models.TrajectoryForecast{}
	for _, f := range forecasts {
		existing, ok := best[f.MetricName]
		if !ok ||
			f.Severity.Weight() > existing.Severity.Weight() ||
			(f.Severity.Weight() == existing.Severity.Weight() &&
				math.Abs(f.SlopePerSecond) > math.Abs(existing.SlopePerSecond)) {
			best[f.MetricName] = f
		}
	}
	out := make([]models.TrajectoryForecast, 0, len(best))
	for _, f := range best {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Weight() != out[j].Severity.Weight() {
			return out[i].Severity.Weight() > out[j].Severity.Weight()
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out
}

// dedupeDegradations keeps one degradation signal per metric, preferring
// higher severity then faster degradation.
func dedupeDegradations(signals []models.DegradationSignal) []models.DegradationSignal {
	best := map[string]models.DegradationSignal{}
	for _, s := range signals {
		existing, ok := best[s.MetricName]
		if !ok ||
			s.Severity.Weight() > existing.Severity.Weight() ||
			(s.Severity.Weight() == existing.Severity.Weight() &&
				math.Abs(s.DegradationRate) > math.Abs(existing.DegradationRate)) {
			best[s.MetricName] = s
		}
	}
	out := make([]models.DegradationSignal, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Weight() != out[j].Severity.Weight() {
			return out[i].Severity.Weight() > out[j].Severity.Weight()
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out
}

// limitOutput enforces the per-list report caps, keeping the strongest
// entries and warning when anything is cut.
func (a *Analyzer) limitOutput(
	anomalies []models.MetricAnomaly,
	changePoints []models.ChangePoint,
	rootCauses []models.RootCause,
	rankedCauses []models.RankedCause,
	clusters []models.AnomalyCluster,
	granger []models.GrangerResult,
	warnings *[]string,
) ([]models.MetricAnomaly, []models.ChangePoint, []models.RootCause, []models.RankedCause, []models.AnomalyCluster, []models.GrangerResult) {
	caps := a.cfg.Engine.Analyzer

	if caps.MaxAnomalies > 0 && len(anomalies) > caps.MaxAnomalies {
		sorted := append([]models.MetricAnomaly(nil), anomalies...)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Severity.Weight() != sorted[j].Severity.Weight() {
				return sorted[i].Severity.Weight() > sorted[j].Severity.Weight()
			}
			if math.Abs(sorted[i].ZScore) != math.Abs(sorted[j].ZScore) {
				return math.Abs(sorted[i].ZScore) > math.Abs(sorted[j].ZScore)
			}
			return sorted[i].Timestamp < sorted[j].Timestamp
		})
		*warnings = append(*warnings, fmt.Sprintf(
			"Metric anomalies truncated from %d to %d (strongest kept).",
			len(anomalies), caps.MaxAnomalies))
		anomalies = sorted[:caps.MaxAnomalies]
	}

	if caps.MaxChangePoints > 0 && len(changePoints) > caps.MaxChangePoints {
		sorted := append([]models.ChangePoint(nil), changePoints...)
		sort.Slice(sorted, func(i, j int) bool {
			if math.Abs(sorted[i].Magnitude) != math.Abs(sorted[j].Magnitude) {
				return math.Abs(sorted[i].Magnitude) > math.Abs(sorted[j].Magnitude)
			}
			return sorted[i].Timestamp < sorted[j].Timestamp
		})
		*warnings = append(*warnings, fmt.Sprintf(
			"Change points truncated from %d to %d (largest magnitude kept).",
			len(changePoints), caps.MaxChangePoints))
		changePoints = sorted[:caps.MaxChangePoints]
	}

	if caps.MaxRootCauses > 0 && len(rootCauses) > caps.MaxRootCauses {
		sorted := append([]models.RootCause(nil), rootCauses...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Confidence > sorted[j].Confidence
		})
		*warnings = append(*warnings, fmt.Sprintf(
			"Root causes truncated from %d to %d (highest confidence kept).",
			len(rootCauses), caps.MaxRootCauses))
		rootCauses = sorted[:caps.MaxRootCauses]
	}

	if caps.MaxRootCauses > 0 && len(rankedCauses) > caps.MaxRootCauses {
		sorted := append([]models.RankedCause(nil), rankedCauses...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].FinalScore > sorted[j].FinalScore
		})
		rankedCauses = sorted[:caps.MaxRootCauses]
	}

	if caps.MaxClusters > 0 && len(clusters) > caps.MaxClusters {
		sorted := append([]models.AnomalyCluster(nil), clusters...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Size > sorted[j].Size
		})
		*warnings = append(*warnings, fmt.Sprintf(
			"Anomaly clusters truncated from %d to %d (largest kept).",
			len(clusters), caps.MaxClusters))
		clusters = sorted[:caps.MaxClusters]
	}

	if caps.MaxGrangerPairs > 0 && len(granger) > caps.MaxGrangerPairs {
		sorted := append([]models.GrangerResult(nil), granger...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Strength > sorted[j].Strength
		})
		*warnings = append(*warnings, fmt.Sprintf(
			"Granger results truncated from %d to %d (strongest kept).",
			len(granger), caps.MaxGrangerPairs))
		granger = sorted[:caps.MaxGrangerPairs]
	}

	return anomalies, changePoints, rootCauses, rankedCauses, clusters, granger
}

// toReportCauses converts ranked engine causes into their report form.
// Both lists share the converted RootCause values.
func toReportCauses(ranked []ml.RankedCause) ([]models.RootCause, []models.RankedCause) {
	rootCauses := make([]models.RootCause, 0, len(ranked))
	rankedCauses := make([]models.RankedCause, 0, len(ranked))
	for _, rc := range ranked {
		converted := toRootCauseModel(rc)
		rootCauses = append(rootCauses, converted)
		rankedCauses = append(rankedCauses, models.RankedCause{
			RootCause:         converted,
			MLScore:           rc.MLScore,
			FinalScore:        rc.FinalScore,
			FeatureImportance: rc.FeatureImportance,
		})
	}
	sort.SliceStable(rootCauses, func(i, j int) bool {
		return rootCauses[i].Confidence > rootCauses[j].Confidence
	})
	return rootCauses, rankedCauses
}

func toRootCauseModel(rc ml.RankedCause) models.RootCause {
	cause := rc.Cause
	confidence := cause.Confidence
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		confidence = 0
	}
	confidence = stats.Clamp(confidence, 0, 1)

	scores := map[string]float64{
		"rule_confidence": stats.Round(cause.Confidence, 6),
		"ml_score":        stats.Round(rc.MLScore, 6),
		"final_score":     stats.Round(rc.FinalScore, 6),
	}
	for name, importance := range rc.FeatureImportance {
		scores["feature_importance:"+name] = stats.Round(importance, 6)
	}

	return models.RootCause{
		Hypothesis:          cause.Hypothesis,
		Confidence:          confidence,
		Evidence:            cause.Evidence,
		ContributingSignals: normalizeSignals(cause.ContributingSignals),
		RecommendedAction:   cause.RecommendedAction,
		Severity:            cause.Severity,
		Category:            cause.Category,
		AffectedServices:    cause.AffectedServices,
		Deployment:          cause.Deployment,
		SelectionScores:     scores,
	}
}

// normalizeSignals maps raw provenance strings onto signal families,
// uniqued in first-seen order. Unknown prefixes are dropped.
func normalizeSignals(raw []string) []models.Signal {
	seen := map[models.Signal]bool{}
	var out []models.Signal
	for _, s := range raw {
		var family models.Signal
		switch {
		case strings.HasPrefix(s, "metric"):
			family = models.SignalMetrics
		case strings.HasPrefix(s, "log"):
			family = models.SignalLogs
		case strings.HasPrefix(s, "trace"):
			family = models.SignalTraces
		case strings.HasPrefix(s, "event"), strings.HasPrefix(s, "deploy"):
			family = models.SignalEvents
		default:
			continue
		}
		if seen[family] {
			continue
		}
		seen[family] = true
		out = append(out, family)
	}
	return out
}
