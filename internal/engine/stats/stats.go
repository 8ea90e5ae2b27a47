// Package stats provides the shared series statistics used by the detectors.
// Moments are population moments, matching how the thresholds were calibrated.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Finite filters ts/vals down to pairs where the value is finite. Timestamps
// carrying NaN are dropped with their value.
func Finite(ts, vals []float64) ([]float64, []float64) {
	outT := make([]float64, 0, len(vals))
	outV := make([]float64, 0, len(vals))
	for i, v := range vals {
		if i >= len(ts) {
			break
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(ts[i]) || math.IsInf(ts[i], 0) {
			continue
		}
		outT = append(outT, ts[i])
		outV = append(outV, v)
	}
	return outT, outV
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

// PopStd returns the population standard deviation.
func PopStd(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	mean := stat.Mean(vals, nil)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// Median returns the middle value, averaging the two central values for
// even-length input.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Percentile returns the p-th percentile (0..100) with linear interpolation
// between closest ranks.
func Percentile(vals []float64, p float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// LinearSlope fits y against x by least squares and returns the slope.
func LinearSlope(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	_, slope := stat.LinearRegression(x, y, nil, false)
	return slope
}

// IndexSlope fits vals against their indices 0..n-1.
func IndexSlope(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	xs := make([]float64, len(vals))
	for i := range xs {
		xs[i] = float64(i)
	}
	return LinearSlope(xs, vals)
}

// Variance returns the population variance.
func Variance(vals []float64) float64 {
	s := PopStd(vals)
	return s * s
}

// Round rounds to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
