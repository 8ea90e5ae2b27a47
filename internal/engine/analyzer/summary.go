package analyzer

import (
	"fmt"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/engine/dedup"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// overallSeverity is the highest severity across the actionable finding
// lists plus forecasts.
func overallSeverity(
	anomalies []models.MetricAnomaly,
	bursts []models.LogBurst,
	patterns []models.LogPattern,
	latency []models.ServiceLatency,
	sloAlerts []models.SloBurnAlert,
	forecasts []models.TrajectoryForecast,
) models.Severity {
	severity := models.SeverityLow
	for _, a := range anomalies {
		severity = models.MaxSeverity(severity, a.Severity)
	}
	for _, b := range bursts {
		severity = models.MaxSeverity(severity, b.Severity)
	}
	for _, p := range patterns {
		severity = models.MaxSeverity(severity, p.Severity)
	}
	for _, l := range latency {
		severity = models.MaxSeverity(severity, l.Severity)
	}
	for _, s := range sloAlerts {
		severity = models.MaxSeverity(severity, s.Severity)
	}
	for _, f := range forecasts {
		severity = models.MaxSeverity(severity, f.Severity)
	}
	return severity
}

// buildSummary renders the one-line report headline:
// "[SEVERITY] part | part. Top: <hypothesis>".
func buildSummary(report *models.AnalysisReport, dedupeWindowSeconds float64) string {
	var parts []string

	if len(report.MetricAnomalies) > 0 {
		groups := dedup.GroupMetricAnomalies(report.MetricAnomalies, dedupeWindowSeconds, true)
		parts = append(parts, fmt.Sprintf("%d metric anomaly group(s)", len(groups)))
	}
	if len(report.LogBursts) > 0 {
		parts = append(parts, fmt.Sprintf("%d log burst(s)", len(report.LogBursts)))
	}
	criticalEvents := 0
	for _, pattern := range report.LogPatterns {
		if pattern.Severity.Weight() > models.SeverityMedium.Weight() {
			criticalEvents += pattern.Count
		}
	}
	if criticalEvents > 0 {
		parts = append(parts, fmt.Sprintf("%d high/critical log events", criticalEvents))
	}
	degraded := 0
	for _, row := range report.ServiceLatency {
		if row.Severity.Weight() >= models.SeverityMedium.Weight() {
			degraded++
		}
	}
	if degraded > 0 {
		parts = append(parts, fmt.Sprintf("%d service(s) degraded", degraded))
	}
	if len(report.ErrorPropagation) > 0 {
		parts = append(parts, fmt.Sprintf("error propagation from %s", report.ErrorPropagation[0].SourceService))
	}
	if len(report.SloAlerts) > 0 {
		parts = append(parts, fmt.Sprintf("%d SLO burn alert(s)", len(report.SloAlerts)))
	}
	if len(report.ChangePoints) > 0 {
		parts = append(parts, fmt.Sprintf("%d change point(s)", len(report.ChangePoints)))
	}
	imminent := 0
	for _, forecast := range report.Forecasts {
		if forecast.Severity.Weight() > models.SeverityMedium.Weight() {
			imminent++
		}
	}
	if imminent > 0 {
		parts = append(parts, fmt.Sprintf("%d imminent breach(es) predicted", imminent))
	}
	if len(report.DegradationSignals) > 0 {
		parts = append(parts, fmt.Sprintf("%d degrading metric(s)", len(report.DegradationSignals)))
	}

	if len(parts) == 0 {
		return "No anomalies detected in the analysis window."
	}

	summary := fmt.Sprintf("[%s] %s.",
		strings.ToUpper(string(report.OverallSeverity)), strings.Join(parts, " | "))
	if len(report.RootCauses) > 0 {
		summary += " Top: " + truncate(report.RootCauses[0].Hypothesis, 120)
	}
	return summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
