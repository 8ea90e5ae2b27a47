package slo

import (
	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// BudgetStatus converts aggregate error and total counts into the
// remaining monthly error budget for a service.
func BudgetStatus(service string, errorCounts, totalCounts []float64, targetAvailability float64, cfg config.SLOConfig) models.BudgetStatus {
	if targetAvailability <= 0 {
		targetAvailability = cfg.DefaultTargetAvailability
	}

	var total, errors float64
	for _, v := range totalCounts {
		total += v
	}
	for _, v := range errorCounts {
		errors += v
	}

	if total == 0 {
		remaining := cfg.MonthMinutes * (1.0 - targetAvailability)
		return models.BudgetStatus{
			Service:             service,
			TargetAvailability:  targetAvailability,
			CurrentAvailability: 1.0,
			BudgetUsedPct:       0.0,
			RemainingMinutes:    stats.Round(remaining, 1),
			OnTrack:             true,
		}
	}

	errorFraction := errors / total
	allowedDowntime := cfg.MonthMinutes * (1.0 - targetAvailability)
	usedDowntime := cfg.MonthMinutes * errorFraction

	remaining := allowedDowntime - usedDowntime
	if remaining < 0 {
		remaining = 0
	}

	budgetUsed := 100.0
	if allowedDowntime > 0 {
		budgetUsed = usedDowntime / allowedDowntime * 100.0
	}
	if budgetUsed > 100.0 {
		budgetUsed = 100.0
	}

	return models.BudgetStatus{
		Service:             service,
		TargetAvailability:  targetAvailability,
		CurrentAvailability: stats.Round(1.0-errorFraction, 6),
		BudgetUsedPct:       stats.Round(budgetUsed, 2),
		RemainingMinutes:    stats.Round(remaining, 1),
		OnTrack:             budgetUsed < 100.0,
	}
}
