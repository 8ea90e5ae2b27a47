// Package changepoint detects level changes in a series with a two-sided
// CUSUM over the global mean. The threshold and slack are expressed as
// sigma multiples, so detection is invariant under positive scaling of
// the input values.
package changepoint

import (
	"math"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

const minSamples = 10

// Detect scans one series and emits a change point every time either
// CUSUM accumulator crosses thresholdSigma standard deviations. Both
// accumulators reset after an emission. thresholdSigma <= 0 falls back to
// the configured default.
func Detect(metric string, ts, vals []float64, thresholdSigma float64, cfg config.ChangepointConfig) []models.ChangePoint {
	if thresholdSigma <= 0 {
		thresholdSigma = cfg.ThresholdSigma
	}
	if len(vals) < minSamples {
		return nil
	}

	mu := stats.Mean(vals)
	sigma := stats.PopStd(vals)
	if sigma == 0 {
		return nil
	}

	oscillation := oscillationIndices(vals, cfg.Window, cfg.OscillationDensityCutoff)

	k := cfg.K * sigma
	h := thresholdSigma * sigma
	pos, neg := 0.0, 0.0
	var out []models.ChangePoint

	for i := 1; i < len(vals); i++ {
		pos = math.Max(0, pos+vals[i]-mu-k)
		neg = math.Max(0, neg-vals[i]+mu-k)
		if pos <= h && neg <= h {
			continue
		}

		before := stats.Mean(vals[max(0, i-5):i])
		after := stats.Mean(vals[i:min(len(vals), i+5)])
		ctype := classify(before, after, sigma, cfg.RelativeCutoff)
		if oscillation[i] {
			ctype = models.ChangeOscillation
		}
		out = append(out, models.ChangePoint{
			MetricName:  metric,
			Index:       i,
			Timestamp:   ts[i],
			ValueBefore: stats.Round(before, 4),
			ValueAfter:  stats.Round(after, 4),
			Magnitude:   stats.Round(math.Abs(after-before)/sigma, 3),
			ChangeType:  ctype,
		})
		pos, neg = 0, 0
	}

	return out
}

func classify(before, after, sigma, relativeCutoff float64) models.ChangeType {
	delta := after - before
	relative := math.Abs(delta) / (math.Abs(before) + 1e-9)
	if relative > relativeCutoff {
		if delta > 0 {
			return models.ChangeSpike
		}
		return models.ChangeDrop
	}
	if math.Abs(delta) > 2*sigma {
		return models.ChangeShift
	}
	return models.ChangeDrift
}

// oscillationIndices marks second-difference sign flips when they are both
// numerous enough (at least window/2) and dense enough over the series.
func oscillationIndices(vals []float64, window int, densityCutoff float64) map[int]bool {
	if len(vals) < 3 {
		return nil
	}
	var idx []int
	for i := 0; i+2 < len(vals); i++ {
		s1 := sign(vals[i+1] - vals[i])
		s2 := sign(vals[i+2] - vals[i+1])
		if math.Abs(s2-s1) > 1 {
			idx = append(idx, i)
		}
	}
	if len(idx) < window/2 {
		return nil
	}
	density := float64(len(idx)) / float64(len(vals))
	if density <= densityCutoff {
		return nil
	}
	out := make(map[int]bool, len(idx))
	for _, i := range idx {
		out[i] = true
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
