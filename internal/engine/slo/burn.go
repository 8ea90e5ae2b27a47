// Package slo evaluates multi-window error-budget burn rates and
// remaining budget for a service.
package slo

import (
	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// EvaluateBurn checks the observed burn rate against each configured
// window in order and returns at most one alert, from the fastest-burning
// window that matched. Windows longer than twice the observed duration
// are skipped.
func EvaluateBurn(service string, errorCounts, totalCounts, ts []float64, targetAvailability float64, cfg config.SLOConfig) []models.SloBurnAlert {
	if len(errorCounts) == 0 || len(totalCounts) == 0 || len(ts) < 2 {
		return nil
	}
	if targetAvailability <= 0 {
		targetAvailability = cfg.DefaultTargetAvailability
	}
	if n := min(len(errorCounts), len(totalCounts)); n < len(errorCounts) || n < len(totalCounts) {
		errorCounts = errorCounts[:n]
		totalCounts = totalCounts[:n]
	}

	duration := ts[len(ts)-1] - ts[0]
	if duration < 0 {
		duration = 0
	}

	var total, errors float64
	for _, v := range totalCounts {
		total += v
	}
	for _, v := range errorCounts {
		errors += v
	}
	if total == 0 {
		return nil
	}

	errorRate := errors / total
	allowed := 1.0 - targetAvailability
	if allowed <= 0 {
		return nil
	}
	burnRate := errorRate / allowed

	monthSeconds := cfg.MonthMinutes * 60

	for _, w := range cfg.BurnWindows {
		if duration < w.WindowSeconds*0.5 {
			continue
		}
		if burnRate < w.Threshold {
			continue
		}
		consumed := burnRate * duration / monthSeconds * 100.0
		if consumed > 100.0 {
			consumed = 100.0
		}
		return []models.SloBurnAlert{{
			Service:           service,
			WindowLabel:       w.Label,
			ErrorRate:         stats.Round(errorRate, 6),
			BurnRate:          stats.Round(burnRate, 3),
			BudgetConsumedPct: stats.Round(consumed, 2),
			Severity:          models.Severity(w.Severity),
		}}
	}
	return nil
}
