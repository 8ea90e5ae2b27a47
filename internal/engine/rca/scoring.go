package rca

import (
	"math"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// ScoreDeploymentCorrelation returns a proximity score in [0,1] between an
// anomaly time and the nearest deployment within the window.
func ScoreDeploymentCorrelation(anomalyTs float64, deployments []models.DeploymentEvent, windowSeconds float64) float64 {
	closest := math.Inf(1)
	for _, d := range deployments {
		lag := math.Abs(d.Timestamp - anomalyTs)
		if lag <= windowSeconds && lag < closest {
			closest = lag
		}
	}
	if math.IsInf(closest, 1) {
		return 0
	}
	return stats.Round(math.Max(0, 1.0-closest/windowSeconds), 3)
}

// ScoreErrorPropagation grows with the total blast radius of the
// propagation findings, capped by configuration.
func ScoreErrorPropagation(propagation []models.ErrorPropagation, cfg config.RCAConfig) float64 {
	if len(propagation) == 0 {
		return 0
	}
	affected := 0
	for _, p := range propagation {
		affected += len(p.AffectedServices)
	}
	score := cfg.ErrorPropBase + float64(affected)*cfg.ErrorPropAffectedFactor
	return stats.Round(math.Min(cfg.ErrorPropMax, score), 3)
}

// ScoreCorrelatedEvent blends smoothed per-family counts, the event's own
// confidence and a severity boost into a base confidence score.
func ScoreCorrelatedEvent(event models.CorrelatedEvent, cfg config.RCAConfig, scoreMax float64) float64 {
	metricWeight := weightFor(cfg.Weights, "metrics", "latency", 0.40)
	logWeight := weightFor(cfg.Weights, "logs", "log", 0.25)
	traceWeight := weightFor(cfg.Weights, "traces", "errors", 0.35)

	metricFactor := math.Min(1.0, math.Log1p(float64(len(event.MetricAnomalies)))/math.Log1p(200.0))
	logFactor := math.Min(1.0, math.Log1p(float64(len(event.LogBursts)))/math.Log1p(50.0))
	traceFactor := math.Min(1.0, math.Log1p(float64(len(event.ServiceLatency)))/math.Log1p(50.0))

	maxWeight := 1
	for _, a := range event.MetricAnomalies {
		if w := a.Severity.Weight(); w > maxWeight {
			maxWeight = w
		}
	}
	severityBoost := 0.1 * math.Min(1.0, float64(maxWeight)/8.0)

	blended := (metricWeight*metricFactor + logWeight*logFactor + traceWeight*traceFactor) *
		(0.7 + 0.3*event.Confidence)
	return stats.Round(math.Min(scoreMax, blended+severityBoost), 3)
}

func weightFor(weights map[string]float64, primary, fallback string, def float64) float64 {
	if v, ok := weights[primary]; ok {
		return v
	}
	if v, ok := weights[fallback]; ok {
		return v
	}
	return def
}

// Categorize assigns an RCA category from the event's evidence, deployment
// nearness first.
func Categorize(event models.CorrelatedEvent, deployments []models.DeploymentEvent, cfg config.RCAConfig) models.RcaCategory {
	if len(deployments) > 0 {
		score := ScoreDeploymentCorrelation(event.WindowStart, deployments, cfg.DeployWindowSeconds)
		if score > cfg.DeployScoreCutoff {
			return models.CategoryDeployment
		}
	}

	for _, a := range event.MetricAnomalies {
		if containsAny(a.MetricName, "memory", "mem", "cpu") {
			return models.CategoryResourceExhaustion
		}
	}
	if len(event.ServiceLatency) > 0 {
		return models.CategoryDependencyFailure
	}
	for _, a := range event.MetricAnomalies {
		if containsAny(a.MetricName, "request", "rate") {
			return models.CategoryTrafficSurge
		}
	}
	return models.CategoryUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
