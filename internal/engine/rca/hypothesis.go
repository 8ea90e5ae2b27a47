// Package rca generates and scores root-cause hypotheses from correlated
// events, error propagation, deployment nearness and critical log patterns.
package rca

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/events"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/engine/topology"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Cause is the engine-internal root-cause hypothesis. Contributing signals
// carry raw provenance strings ("metric:<name>", "log:bursts",
// "trace:<service>") that the report layer normalizes to signal families.
type Cause struct {
	Hypothesis          string
	Confidence          float64
	Severity            models.Severity
	Category            models.RcaCategory
	Evidence            []string
	ContributingSignals []string
	AffectedServices    []string
	RecommendedAction   string
	Deployment          *models.DeploymentEvent
}

// Inputs bundles everything hypothesis generation consumes.
type Inputs struct {
	MetricAnomalies  []models.MetricAnomaly
	LogBursts        []models.LogBurst
	LogPatterns      []models.LogPattern
	ServiceLatency   []models.ServiceLatency
	ErrorPropagation []models.ErrorPropagation
	CorrelatedEvents []models.CorrelatedEvent
	Graph            *topology.DependencyGraph
	EventRegistry    *events.Registry
}

// Generate produces root-cause hypotheses sorted by descending confidence.
// If every cause falls below the display threshold, only the strongest
// survives, tagged "[low_confidence]".
func Generate(in Inputs, cfg config.RCAConfig, correlation config.CorrelationConfig, severity config.SeverityConfig, topoMaxDepth int) []Cause {
	var causes []Cause
	var deployments []models.DeploymentEvent
	if in.EventRegistry != nil {
		deployments = in.EventRegistry.ListAll()
	}

	for _, event := range in.CorrelatedEvents {
		if event.Confidence < cfg.EventConfidenceThreshold {
			continue
		}

		category := Categorize(event, deployments, cfg)
		baseScore := ScoreCorrelatedEvent(event, cfg, correlation.ScoreMax)
		deployScore := ScoreDeploymentCorrelation(event.WindowStart, deployments, cfg.DeployWindowSeconds)
		confidence := stats.Round(math.Min(cfg.ScoreCap, baseScore+deployScore*0.2), 3)

		deployEvent := closestDeployment(event.WindowStart, deployments, cfg.DeployWindowSeconds)

		var affected []string
		rootSvc := ""
		if len(event.ServiceLatency) > 0 && in.Graph != nil {
			rootSvc = event.ServiceLatency[0].Service
			affected = in.Graph.BlastRadius(rootSvc, topoMaxDepth).AffectedDownstream
		}

		hypothesis := buildHypothesis(category, event, deployEvent)

		causes = append(causes, Cause{
			Hypothesis: hypothesis,
			Confidence: confidence,
			Severity:   models.SeverityFromScore(confidence, severity.ScoreMedium, severity.ScoreHigh, severity.ScoreCritical),
			Category:   category,
			Evidence: []string{
				fmt.Sprintf("metrics=%d", len(event.MetricAnomalies)),
				fmt.Sprintf("log_bursts=%d", len(event.LogBursts)),
				fmt.Sprintf("latency_services=%d", len(event.ServiceLatency)),
			},
			ContributingSignals: signalsFromEvent(event),
			AffectedServices:    affected,
			RecommendedAction:   actionForCategory(category, rootSvc),
			Deployment:          deployEvent,
		})
	}

	for _, prop := range in.ErrorPropagation {
		conf := ScoreErrorPropagation([]models.ErrorPropagation{prop}, cfg)
		var upstream []string
		if in.Graph != nil {
			upstream = in.Graph.FindUpstreamRoots(prop.SourceService)
		}
		allAffected := dedupeStrings(append(append([]string{}, upstream...), prop.AffectedServices...))
		causes = append(causes, Cause{
			Hypothesis: fmt.Sprintf("[error_propagation] Errors originating from %s, cascading to %s",
				prop.SourceService, strings.Join(firstN(prop.AffectedServices, 3), ", ")),
			Confidence:          conf,
			Severity:            models.SeverityHigh,
			Category:            models.CategoryErrorPropagation,
			ContributingSignals: []string{"trace:propagation:" + prop.SourceService},
			AffectedServices:    allAffected,
			RecommendedAction:   actionForCategory(models.CategoryErrorPropagation, prop.SourceService),
		})
	}

	var criticalPatterns []models.LogPattern
	for _, p := range in.LogPatterns {
		if p.Severity.Weight() >= cfg.SeverityWeightThreshold {
			criticalPatterns = append(criticalPatterns, p)
		}
	}
	if len(criticalPatterns) > 0 {
		signals := make([]string, 0, 3)
		for _, p := range firstNPatterns(criticalPatterns, 3) {
			signals = append(signals, "log:"+truncate(p.Pattern, 40))
		}
		causes = append(causes, Cause{
			Hypothesis: fmt.Sprintf("[log_pattern] %d critical pattern(s): %s",
				len(criticalPatterns), truncate(criticalPatterns[0].Pattern, 80)),
			Confidence:          cfg.LogPatternScore,
			Severity:            models.SeverityHigh,
			Category:            models.CategoryUnknown,
			ContributingSignals: signals,
			RecommendedAction:   "Review high-severity log patterns for error root cause.",
		})
	}

	sort.SliceStable(causes, func(i, j int) bool { return causes[i].Confidence > causes[j].Confidence })

	var filtered []Cause
	for _, c := range causes {
		if c.Confidence >= cfg.MinDisplayConfidence {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}
	if len(causes) > 0 {
		top := causes[0]
		top.Hypothesis = "[low_confidence] " + top.Hypothesis
		return []Cause{top}
	}
	return nil
}

// DedupeByHypothesis keeps the highest-confidence cause per hypothesis
// string, preserving order of first appearance.
func DedupeByHypothesis(causes []Cause) []Cause {
	best := map[string]int{}
	var out []Cause
	for _, c := range causes {
		if idx, ok := best[c.Hypothesis]; ok {
			if c.Confidence > out[idx].Confidence {
				out[idx] = c
			}
			continue
		}
		best[c.Hypothesis] = len(out)
		out = append(out, c)
	}
	return out
}

func closestDeployment(ts float64, deployments []models.DeploymentEvent, windowSeconds float64) *models.DeploymentEvent {
	var best *models.DeploymentEvent
	bestLag := math.Inf(1)
	for i := range deployments {
		lag := math.Abs(deployments[i].Timestamp - ts)
		if lag <= windowSeconds && lag < bestLag {
			best = &deployments[i]
			bestLag = lag
		}
	}
	return best
}

func buildHypothesis(category models.RcaCategory, event models.CorrelatedEvent, deploy *models.DeploymentEvent) string {
	var parts []string
	if deploy != nil {
		parts = append(parts, fmt.Sprintf("deployment of %s v%s", deploy.Service, deploy.Version))
	}
	if names := uniqueMetricNames(event.MetricAnomalies, 2); len(names) > 0 {
		parts = append(parts, "metric anomaly in "+strings.Join(names, ", "))
	}
	if svcs := uniqueLatencyServices(event.ServiceLatency, 2); len(svcs) > 0 {
		parts = append(parts, "latency spike in "+strings.Join(svcs, ", "))
	}
	if len(event.LogBursts) > 0 {
		parts = append(parts, fmt.Sprintf("%d log burst(s)", len(event.LogBursts)))
	}
	detail := strings.Join(parts, " + ")
	if detail == "" {
		detail = "multi-signal event"
	}
	return fmt.Sprintf("[%s] Correlated incident: %s", category, detail)
}

func signalsFromEvent(event models.CorrelatedEvent) []string {
	var signals []string
	for _, name := range uniqueMetricNames(event.MetricAnomalies, 3) {
		signals = append(signals, "metric:"+name)
	}
	if len(event.LogBursts) > 0 {
		signals = append(signals, "log:bursts")
	}
	for _, svc := range uniqueLatencyServices(event.ServiceLatency, 2) {
		signals = append(signals, "trace:"+svc)
	}
	if len(signals) == 0 {
		return []string{"metrics"}
	}
	return signals
}

func actionForCategory(category models.RcaCategory, service string) string {
	switch category {
	case models.CategoryDeployment:
		if service == "" {
			service = "affected service"
		}
		return fmt.Sprintf("Rollback recent deployment for %s.", service)
	case models.CategoryResourceExhaustion:
		return "Check resource limits, scale horizontally or increase quotas."
	case models.CategoryDependencyFailure:
		return "Inspect downstream dependencies and circuit breakers."
	case models.CategoryTrafficSurge:
		return "Verify rate limits, auto-scaling triggers, and CDN caching."
	case models.CategoryErrorPropagation:
		if service == "" {
			service = "source service"
		}
		return fmt.Sprintf("Isolate %s and check recent changes.", service)
	case models.CategorySloBurn:
		return "Immediate incident response; error budget critical."
	default:
		return "Review correlated signals and recent changes."
	}
}

func uniqueMetricNames(anomalies []models.MetricAnomaly, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range anomalies {
		if a.MetricName == "" || seen[a.MetricName] {
			continue
		}
		seen[a.MetricName] = true
		out = append(out, a.MetricName)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func uniqueLatencyServices(rows []models.ServiceLatency, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if r.Service == "" || seen[r.Service] {
			continue
		}
		seen[r.Service] = true
		out = append(out, r.Service)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func firstNPatterns(in []models.LogPattern, n int) []models.LogPattern {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
