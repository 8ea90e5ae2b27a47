package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/internal/monitoring"
)

// applyQualityGates runs the quality passes over the assembled findings.
// The suppression passes (per-metric anomaly density cap, low-confidence
// cause cutoff, multi-signal corroboration rule) fire only under a
// precision gating profile. Surviving causes are annotated with
// corroboration diagnostics and the report quality block is returned.
func (a *Analyzer) applyQualityGates(
	anomalies []models.MetricAnomaly,
	rootCauses []models.RootCause,
	rankedCauses []models.RankedCause,
	windowSeconds float64,
	suppression map[string]int,
	warnings *[]string,
) ([]models.MetricAnomaly, []models.RootCause, []models.RankedCause, *models.AnalysisQuality) {
	quality := a.cfg.Engine.Quality
	hours := math.Max(windowSeconds/3600.0, 1.0/60.0)

	if strings.HasPrefix(strings.ToLower(quality.GatingProfile), "precision") {
		anomalies = a.capAnomalyDensity(anomalies, hours, suppression, warnings)
		rootCauses, rankedCauses = a.suppressLowConfidence(rootCauses, rankedCauses, suppression, warnings)
		rootCauses, rankedCauses = a.enforceCorroboration(rootCauses, rankedCauses, suppression, warnings)
	}

	for i := range rootCauses {
		annotateCause(&rootCauses[i], quality.GatingProfile, quality.MinCorroborationSignals)
	}
	for i := range rankedCauses {
		annotateCause(&rankedCauses[i].RootCause, quality.GatingProfile, quality.MinCorroborationSignals)
	}

	counts := map[string]int{}
	for reason, count := range suppression {
		if count <= 0 {
			continue
		}
		counts[reason] = count
		monitoring.RecordSuppression(reason, count)
	}

	return anomalies, rootCauses, rankedCauses, &models.AnalysisQuality{
		AnomalyDensity:               anomalyDensity(anomalies, hours),
		SuppressionCounts:            counts,
		GatingProfile:                quality.GatingProfile,
		ConfidenceCalibrationVersion: quality.CalibrationVersion,
	}
}

// capAnomalyDensity keeps at most ceil(cap * hours) anomalies per metric,
// ranked strongest first.
func (a *Analyzer) capAnomalyDensity(anomalies []models.MetricAnomaly, hours float64, suppression map[string]int, warnings *[]string) []models.MetricAnomaly {
	cap := a.cfg.Engine.Quality.DensityCapPerMetricHour
	if cap <= 0 || len(anomalies) == 0 {
		return anomalies
	}
	keepPerMetric := int(math.Max(1, math.Ceil(cap*hours)))

	byMetric := map[string][]models.MetricAnomaly{}
	var order []string
	for _, anomaly := range anomalies {
		if _, seen := byMetric[anomaly.MetricName]; !seen {
			order = append(order, anomaly.MetricName)
		}
		byMetric[anomaly.MetricName] = append(byMetric[anomaly.MetricName], anomaly)
	}

	suppressed := 0
	var kept []models.MetricAnomaly
	for _, metric := range order {
		group := byMetric[metric]
		if len(group) > keepPerMetric {
			sort.SliceStable(group, func(i, j int) bool {
				if group[i].Severity.Weight() != group[j].Severity.Weight() {
					return group[i].Severity.Weight() > group[j].Severity.Weight()
				}
				if math.Abs(group[i].ZScore) != math.Abs(group[j].ZScore) {
					return math.Abs(group[i].ZScore) > math.Abs(group[j].ZScore)
				}
				if math.Abs(group[i].MADScore) != math.Abs(group[j].MADScore) {
					return math.Abs(group[i].MADScore) > math.Abs(group[j].MADScore)
				}
				return group[i].Timestamp > group[j].Timestamp
			})
			suppressed += len(group) - keepPerMetric
			group = group[:keepPerMetric]
		}
		kept = append(kept, group...)
	}
	if suppressed > 0 {
		suppression["density_suppressed_metric_anomalies"] += suppressed
		*warnings = append(*warnings, fmt.Sprintf(
			"Suppressed %d anomalies above the per-metric density cap (%d per metric for this window).",
			suppressed, keepPerMetric))
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].Timestamp != kept[j].Timestamp {
				return kept[i].Timestamp < kept[j].Timestamp
			}
			return kept[i].MetricName < kept[j].MetricName
		})
	}
	return kept
}

// suppressLowConfidence drops causes below the display cutoff. When every
// cause falls below it the list is kept whole rather than emptied.
func (a *Analyzer) suppressLowConfidence(rootCauses []models.RootCause, rankedCauses []models.RankedCause, suppression map[string]int, warnings *[]string) ([]models.RootCause, []models.RankedCause) {
	if len(rootCauses) <= 1 {
		return rootCauses, rankedCauses
	}
	cutoff := math.Max(a.cfg.Engine.RCA.MinDisplayConfidence, 0.10)

	var kept []models.RootCause
	for _, cause := range rootCauses {
		if cause.Confidence >= cutoff {
			kept = append(kept, cause)
		}
	}
	if len(kept) == 0 {
		return rootCauses, rankedCauses
	}
	if suppressed := len(rootCauses) - len(kept); suppressed > 0 {
		suppression["low_confidence_root_causes"] += suppressed
		*warnings = append(*warnings, fmt.Sprintf(
			"Suppressed %d root cause(s) below the %.2f confidence display cutoff.",
			suppressed, cutoff))
	}
	return kept, filterRanked(rankedCauses, kept, suppression)
}

// enforceCorroboration truncates the cause list when nothing in it is
// backed by multiple signal families.
func (a *Analyzer) enforceCorroboration(rootCauses []models.RootCause, rankedCauses []models.RankedCause, suppression map[string]int, warnings *[]string) ([]models.RootCause, []models.RankedCause) {
	quality := a.cfg.Engine.Quality
	if quality.MinCorroborationSignals <= 1 || len(rootCauses) == 0 {
		return rootCauses, rankedCauses
	}
	for _, cause := range rootCauses {
		if len(cause.ContributingSignals) >= quality.MinCorroborationSignals {
			return rootCauses, rankedCauses
		}
	}

	limit := maxInt(quality.MaxCausesWithoutMultiSig, 1)
	if len(rootCauses) <= limit {
		return rootCauses, rankedCauses
	}
	suppressed := len(rootCauses) - limit
	suppression["root_causes_without_multisignal"] += suppressed
	*warnings = append(*warnings, fmt.Sprintf(
		"Suppressed %d single-signal root cause(s); no hypothesis met the %d-signal corroboration minimum.",
		suppressed, quality.MinCorroborationSignals))
	kept := rootCauses[:limit]
	return kept, filterRanked(rankedCauses, kept, suppression)
}

// filterRanked keeps ranked entries whose hypothesis survived the gates
// and counts the ones it drops.
func filterRanked(rankedCauses []models.RankedCause, kept []models.RootCause, suppression map[string]int) []models.RankedCause {
	allowed := make(map[string]bool, len(kept))
	for _, cause := range kept {
		allowed[cause.Hypothesis] = true
	}
	var out []models.RankedCause
	for _, rc := range rankedCauses {
		if allowed[rc.RootCause.Hypothesis] {
			out = append(out, rc)
		}
	}
	if dropped := len(rankedCauses) - len(out); dropped > 0 {
		suppression["suppressed_ranked_causes"] += dropped
	}
	return out
}

func annotateCause(cause *models.RootCause, profile string, minSignals int) {
	count := len(cause.ContributingSignals)
	if count >= minSignals && count > 1 {
		names := make([]string, 0, count)
		for _, signal := range cause.ContributingSignals {
			names = append(names, string(signal))
		}
		cause.CorroborationSummary = fmt.Sprintf("%d corroborating signal(s): %s",
			count, strings.Join(names, ", "))
	} else {
		cause.CorroborationSummary = "single-signal evidence"
	}
	cause.SuppressionDiagnostics = map[string]any{
		"gating_profile":                  profile,
		"signal_count":                    count,
		"min_corroboration_signals":       minSignals,
		"meets_min_corroboration_signals": count >= minSignals,
	}
}

// anomalyDensity reports anomalies per metric per hour, rounded.
func anomalyDensity(anomalies []models.MetricAnomaly, hours float64) map[string]float64 {
	counts := map[string]int{}
	for _, anomaly := range anomalies {
		counts[anomaly.MetricName]++
	}
	out := make(map[string]float64, len(counts))
	for metric, count := range counts {
		out[metric] = stats.Round(float64(count)/hours, 4)
	}
	return out
}
