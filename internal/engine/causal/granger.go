// Package causal runs pairwise Granger tests over metric series, scores
// RCA categories with a Bayesian posterior, and builds a causal DAG with
// intervention simulation.
package causal

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// GrangerPair tests whether cause's past values improve a linear
// prediction of effect beyond effect's own lags. Returns nil when the
// series are mismatched, too short, or the regression degenerates.
func GrangerPair(causeName string, causeVals []float64, effectName string, effectVals []float64, cfg config.CausalConfig) *models.GrangerResult {
	maxLag := cfg.GrangerMaxLag
	if maxLag <= 0 {
		maxLag = 3
	}
	if len(causeVals) != len(effectVals) || len(causeVals) < maxLag+10 {
		return nil
	}

	n := len(effectVals) - maxLag
	y := effectVals[maxLag:]

	restricted := lagMatrix(effectVals, maxLag, nil)
	ssRestricted, ok := olsResidualSS(restricted, y)
	if !ok {
		return nil
	}

	unrestricted := lagMatrix(effectVals, maxLag, causeVals)
	ssUnrestricted, ok := olsResidualSS(unrestricted, y)
	if !ok {
		return nil
	}

	k := maxLag
	denomDf := n - 2*maxLag - 1
	if denomDf <= 0 || ssUnrestricted == 0 {
		return nil
	}

	fStat := ((ssRestricted - ssUnrestricted) / float64(k)) / (ssUnrestricted / float64(denomDf))
	fDist := distuv.F{D1: float64(k), D2: float64(denomDf)}
	pValue := 1.0 - fDist.CDF(fStat)

	isCausal := pValue < cfg.GrangerPThreshold && fStat > 1.0
	strength := (1.0 - pValue) * minF(1.0, fStat/cfg.GrangerStrengthScale)
	if strength < 0 {
		strength = 0
	}

	return &models.GrangerResult{
		CauseMetric:  causeName,
		EffectMetric: effectName,
		MaxLag:       maxLag,
		FStatistic:   stats.Round(fStat, 4),
		PValue:       stats.Round(pValue, 6),
		IsCausal:     isCausal,
		Strength:     stats.Round(strength, 3),
	}
}

// GrangerPairs tests every ordered pair and keeps the causal results,
// strongest first. Iteration follows the given name order so results are
// deterministic.
func GrangerPairs(names []string, seriesMap map[string][]float64, cfg config.CausalConfig) []models.GrangerResult {
	var results []models.GrangerResult
	for _, cause := range names {
		for _, effect := range names {
			if cause == effect {
				continue
			}
			r := GrangerPair(cause, seriesMap[cause], effect, seriesMap[effect], cfg)
			if r != nil && r.IsCausal {
				results = append(results, *r)
			}
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Strength > results[j].Strength })
	return results
}

// lagMatrix builds [1, effect_lag1..effect_lagL] rows, optionally extended
// with the cause's lag columns.
func lagMatrix(effect []float64, maxLag int, cause []float64) *mat.Dense {
	n := len(effect) - maxLag
	cols := 1 + maxLag
	if cause != nil {
		cols += maxLag
	}
	X := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1.0)
		for lag := 1; lag <= maxLag; lag++ {
			X.Set(i, lag, effect[maxLag-lag+i])
		}
		if cause != nil {
			for lag := 1; lag <= maxLag; lag++ {
				X.Set(i, maxLag+lag, cause[maxLag-lag+i])
			}
		}
	}
	return X
}

func olsResidualSS(X *mat.Dense, y []float64) (float64, bool) {
	rows, _ := X.Dims()
	if rows != len(y) {
		return 0, false
	}
	yVec := mat.NewVecDense(len(y), y)

	var qr mat.QR
	qr.Factorize(X)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yVec); err != nil {
		return 0, false
	}

	var predicted mat.VecDense
	predicted.MulVec(X, &beta)

	var ss float64
	for i := 0; i < len(y); i++ {
		r := y[i] - predicted.AtVec(i)
		ss += r * r
	}
	return ss, true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
