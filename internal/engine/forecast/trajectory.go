// Package forecast projects metric trajectories with a linear fit and
// surfaces sustained degradations from EMA-smoothed series.
package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Trajectory fits the series linearly and predicts whether it crosses
// threshold inside the horizon. It returns nil when the fit explains too
// little variance or the prediction stays far from the threshold.
// horizonSeconds <= 0 falls back to the configured cutoff.
func Trajectory(metric string, ts, vals []float64, threshold, horizonSeconds float64, cfg config.ForecastConfig) *models.TrajectoryForecast {
	if horizonSeconds <= 0 {
		horizonSeconds = cfg.TrajectoryHorizonCutoff
	}
	if len(vals) < cfg.TrajectoryMinLength {
		return nil
	}

	tNorm := make([]float64, len(ts))
	for i, t := range ts {
		tNorm[i] = t - ts[0]
	}
	intercept, slope := stat.LinearRegression(tNorm, vals, nil, false)
	r2 := rSquared(tNorm, vals, slope, intercept)
	if r2 < cfg.TrajectoryR2Threshold || slope == 0 {
		return nil
	}

	nowOffset := tNorm[len(tNorm)-1]
	current := slope*nowOffset + intercept
	predicted := slope*(nowOffset+horizonSeconds) + intercept

	var timeToThreshold *float64
	if slope > 0 && current < threshold {
		v := (threshold - current) / slope
		timeToThreshold = &v
	} else if slope < 0 && current > threshold {
		v := (current - threshold) / math.Abs(slope)
		timeToThreshold = &v
	}

	willBreach := timeToThreshold != nil && *timeToThreshold <= horizonSeconds
	if !willBreach && math.Abs(predicted-threshold)/(math.Abs(threshold)+1e-9) > cfg.TrajectoryRatioThreshold {
		return nil
	}

	confidence := stats.Round(math.Min(0.99, r2*(1.0-math.Min(1.0, math.Abs(slope)/(math.Abs(current)+1e-9)))), 3)

	severity := models.SeverityLow
	switch {
	case timeToThreshold != nil && *timeToThreshold < cfg.TrajectoryWindowSeconds:
		severity = models.SeverityCritical
	case timeToThreshold != nil && *timeToThreshold < cfg.TrajectoryWindowSeconds*3:
		severity = models.SeverityHigh
	case willBreach:
		severity = models.SeverityMedium
	}

	if timeToThreshold != nil {
		v := stats.Round(*timeToThreshold, 1)
		timeToThreshold = &v
	}
	return &models.TrajectoryForecast{
		MetricName:              metric,
		CurrentValue:            stats.Round(current, 4),
		SlopePerSecond:          stats.Round(slope, 6),
		PredictedValueAtHorizon: stats.Round(predicted, 4),
		TimeToThresholdSeconds:  timeToThreshold,
		BreachThreshold:         threshold,
		Confidence:              confidence,
		Severity:                severity,
	}
}

func rSquared(tNorm, vals []float64, slope, intercept float64) float64 {
	mean := stats.Mean(vals)
	var ssRes, ssTot float64
	for i, v := range vals {
		predicted := slope*tNorm[i] + intercept
		ssRes += (v - predicted) * (v - predicted)
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot <= 0 {
		return 0
	}
	return 1.0 - ssRes/ssTot
}
