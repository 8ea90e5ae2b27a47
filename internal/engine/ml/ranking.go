package ml

import (
	"sort"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/rca"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// RankedCause pairs a cause with its ML blend score.
type RankedCause struct {
	Cause             rca.Cause
	MLScore           float64
	FinalScore        float64
	FeatureImportance map[string]float64
}

var featureNames = []string{
	"rule_confidence", "severity_weight", "signal_count",
	"blast_radius", "has_deployment", "metric_anomaly_count",
	"log_burst_count", "latency_count", "correlation_confidence",
}

func extractFeatures(cause rca.Cause, event *models.CorrelatedEvent, cfg config.RankingConfig) []float64 {
	features := []float64{
		cause.Confidence,
		float64(cause.Severity.Weight()) / cfg.SeverityDivisor,
		float64(len(cause.ContributingSignals)) / cfg.SignalDivisor,
		float64(len(cause.AffectedServices)) / cfg.SignalDivisor,
		0, 0, 0, 0, 0,
	}
	if cause.Deployment != nil {
		features[4] = 1.0
	}
	if event != nil {
		features[5] = float64(len(event.MetricAnomalies)) / cfg.EventCountDivisor
		features[6] = float64(len(event.LogBursts)) / cfg.EventCountDivisor
		features[7] = float64(len(event.ServiceLatency)) / cfg.EventCountDivisor
		features[8] = event.Confidence
	}
	return features
}

// Rank orders causes by a blend of rule confidence and a per-request
// random-forest score. The forest only trains when there are at least four
// causes and both label classes are present; otherwise the ML component
// falls back to rule confidence with uniform importances.
func Rank(causes []rca.Cause, correlatedEvents []models.CorrelatedEvent, cfg config.RankingConfig) []RankedCause {
	if len(causes) == 0 {
		return nil
	}

	eventsByMetric := map[string]*models.CorrelatedEvent{}
	for i := range correlatedEvents {
		ev := &correlatedEvents[i]
		for _, a := range ev.MetricAnomalies {
			eventsByMetric[a.MetricName] = ev
		}
	}

	X := make([][]float64, 0, len(causes))
	for _, cause := range causes {
		var event *models.CorrelatedEvent
		for _, sig := range cause.ContributingSignals {
			if name, ok := strings.CutPrefix(sig, "metric:"); ok {
				event = eventsByMetric[name]
				break
			}
		}
		X = append(X, extractFeatures(cause, event, cfg))
	}

	mlScores := make([]float64, len(causes))
	importances := uniformImportances()

	if len(causes) >= 4 {
		labels := make([]int, len(causes))
		hasPos, hasNeg := false, false
		for i, c := range causes {
			if c.Confidence >= cfg.LabelThreshold {
				labels[i] = 1
				hasPos = true
			} else {
				hasNeg = true
			}
		}
		if hasPos && hasNeg {
			rf := NewRandomForest(cfg.RFEstimators, cfg.RFMaxDepth, cfg.RFRandomState)
			rf.Fit(X, labels)
			mlScores = rf.PredictProba(X)
			importances = map[string]float64{}
			for i, imp := range rf.FeatureImportances() {
				importances[featureNames[i]] = imp
			}
		} else {
			copyRuleScores(mlScores, causes)
		}
	} else {
		copyRuleScores(mlScores, causes)
	}

	out := make([]RankedCause, 0, len(causes))
	for i, cause := range causes {
		final := stats.Round(cfg.ConfidenceBlend*cause.Confidence+cfg.MLBlend*mlScores[i], 3)
		out = append(out, RankedCause{
			Cause:             cause,
			MLScore:           stats.Round(mlScores[i], 3),
			FinalScore:        final,
			FeatureImportance: importances,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	return out
}

func copyRuleScores(dst []float64, causes []rca.Cause) {
	for i, c := range causes {
		dst[i] = c.Confidence
	}
}

func uniformImportances() map[string]float64 {
	out := make(map[string]float64, len(featureNames))
	for _, n := range featureNames {
		out[n] = 1.0 / float64(len(featureNames))
	}
	return out
}
