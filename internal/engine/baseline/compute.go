// Package baseline computes rolling statistical references for metric
// series, with an hour-of-day seasonal adjustment once enough samples
// accumulate.
package baseline

import (
	"math"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Compute derives a baseline from one series. Below the seasonal sample
// floor the std is taken over raw values; at or above it the values are
// detrended by hour-of-day averages first. A zero std is floored to 1.0 so
// the bounds stay usable. zThreshold <= 0 falls back to the configured
// default.
func Compute(ts, vals []float64, zThreshold float64, cfg config.BaselineConfig) models.Baseline {
	if zThreshold <= 0 {
		zThreshold = cfg.ZScoreThreshold
	}
	n := len(vals)
	mean := stats.Mean(vals)

	if n < cfg.MinSamples {
		std := floorStd(stats.PopStd(vals))
		return bounded(mean, std, zThreshold, nil, n)
	}

	var seasonalMean *float64
	std := floorStd(stats.PopStd(vals))

	if n >= cfg.SeasonalMinSamples {
		buckets := hourBuckets(ts)
		sums := map[int]float64{}
		counts := map[int]int{}
		for i, b := range buckets {
			sums[b] += vals[i]
			counts[b]++
		}
		hourAvgs := make(map[int]float64, len(sums))
		for b, s := range sums {
			hourAvgs[b] = s / float64(counts[b])
		}
		detrended := make([]float64, n)
		for i, b := range buckets {
			detrended[i] = vals[i] - hourAvgs[b]
		}
		std = floorStd(stats.PopStd(detrended))

		var total float64
		for _, avg := range hourAvgs {
			total += avg
		}
		sm := total / float64(len(hourAvgs))
		seasonalMean = &sm
	}

	return bounded(mean, std, zThreshold, seasonalMean, n)
}

// Score reports whether val falls outside the baseline bounds, plus its
// z-score against the baseline.
func Score(val float64, b models.Baseline) (bool, float64) {
	z := 0.0
	if b.Std != 0 {
		z = math.Abs(val-b.Mean) / b.Std
	}
	return val < b.Lower || val > b.Upper, stats.Round(z, 3)
}

// Blend folds a fresh baseline into a cached one, weighting the cached
// side by 1-alpha. Bounds are recomputed at z=3 and sample counts
// accumulate.
func Blend(cached, fresh models.Baseline, alpha float64) models.Baseline {
	a := 1.0 - alpha
	mean := a*cached.Mean + alpha*fresh.Mean
	std := math.Max(a*cached.Std+alpha*fresh.Std, 1e-9)

	seasonal := fresh.SeasonalMean
	if seasonal == nil {
		seasonal = cached.SeasonalMean
	}
	return models.Baseline{
		Mean:         stats.Round(mean, 6),
		Std:          stats.Round(std, 6),
		Lower:        stats.Round(mean-3*std, 6),
		Upper:        stats.Round(mean+3*std, 6),
		SeasonalMean: seasonal,
		SampleCount:  cached.SampleCount + fresh.SampleCount,
	}
}

func hourBuckets(ts []float64) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = (int(t) % 86400) / 3600
	}
	return out
}

func floorStd(std float64) float64 {
	if std == 0 {
		return 1.0
	}
	return std
}

func bounded(mean, std, z float64, seasonal *float64, n int) models.Baseline {
	return models.Baseline{
		Mean:         mean,
		Std:          std,
		Lower:        mean - z*std,
		Upper:        mean + z*std,
		SeasonalMean: seasonal,
		SampleCount:  n,
	}
}
