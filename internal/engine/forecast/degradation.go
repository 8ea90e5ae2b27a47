package forecast

import (
	"math"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Degradation smooths the series with an EMA and reports a signal when the
// normalized slope clears the minimum degradation rate. Acceleration
// compares the mean step of the second half against the first.
func Degradation(metric string, ts, vals []float64, minRate float64, cfg config.ForecastConfig) *models.DegradationSignal {
	if minRate <= 0 {
		minRate = cfg.MinDegradationRate
	}
	if len(vals) < cfg.DegradationMinLength {
		return nil
	}

	smoothed := ema(vals, cfg.EMAAlpha)
	window := ts[len(ts)-1] - ts[0]

	xs := make([]float64, len(smoothed))
	for i := range xs {
		xs[i] = float64(i) / float64(len(smoothed)-1)
	}
	slope := stats.LinearSlope(xs, smoothed)

	meanAbs := meanAbsolute(vals)
	volatility := stats.PopStd(vals) / (meanAbs + 1e-9)
	accel := acceleration(smoothed)

	rate := math.Abs(slope) / (meanAbs + 1e-9)
	if rate < minRate {
		return nil
	}

	trend := "recovering"
	if slope > 0 {
		trend = "degrading"
	}

	severity := models.SeverityLow
	switch {
	case rate > cfg.DegradationThresholdCritical || (rate > cfg.DegradationThresholdHigh && accel > 0):
		severity = models.SeverityCritical
	case rate > cfg.DegradationThresholdHigh:
		severity = models.SeverityHigh
	case rate > cfg.DegradationThresholdMedium:
		severity = models.SeverityMedium
	}

	return &models.DegradationSignal{
		MetricName:      metric,
		DegradationRate: stats.Round(rate, 4),
		Volatility:      stats.Round(volatility, 4),
		Trend:           trend,
		WindowSeconds:   stats.Round(window, 1),
		Severity:        severity,
		IsAccelerating:  accel > 0 && slope > 0,
	}
}

func ema(vals []float64, alpha float64) []float64 {
	out := make([]float64, len(vals))
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// acceleration is the mean first difference of the second half minus that
// of the first half.
func acceleration(vals []float64) float64 {
	if len(vals) < 4 {
		return 0
	}
	half := len(vals) / 2
	return meanDiff(vals[half:]) - meanDiff(vals[:half])
}

func meanDiff(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(vals); i++ {
		total += vals[i] - vals[i-1]
	}
	return total / float64(len(vals)-1)
}

func meanAbsolute(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var total float64
	for _, v := range vals {
		total += math.Abs(v)
	}
	return total / float64(len(vals))
}
