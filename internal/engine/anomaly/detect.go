// Package anomaly flags individual metric samples by consensus of z-score,
// MAD, CUSUM and an isolation forest. Isolation hits alone are never
// emitted; they need statistical corroboration at a reduced threshold.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/ml"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Detect runs the consensus detector over one series. It returns nil when
// the series is too short, has too few finite samples, or zero variance.
func Detect(metric string, timestamps, values []float64, sensitivity float64, cfg config.AnomalyConfig, sev config.SeverityConfig, quality config.QualityConfig) []models.MetricAnomaly {
	if len(values) < cfg.MinSamples {
		return nil
	}
	if sensitivity == 0 {
		sensitivity = cfg.DefaultSensitivity
	}

	contamination := stats.Clamp(
		cfg.ContaminationDivisor/math.Max(sensitivity, cfg.MinSensitivity),
		cfg.ContaminationMin, cfg.ContaminationMax)
	if isPrecisionProfile(quality.GatingProfile) {
		contamination = math.Min(contamination*quality.PrecisionContaminationMult, quality.PrecisionContaminationCap)
	}

	cleanTs, clean := stats.Finite(timestamps, values)
	if len(clean) < cfg.MinSamples {
		return nil
	}

	mean := stats.Mean(clean)
	std := stats.PopStd(clean)
	if std == 0 {
		return nil
	}

	zScores := make([]float64, len(clean))
	for i, v := range clean {
		zScores[i] = (v - mean) / std
	}
	madScores := madScores(clean, cfg.MADScale)
	cusumFlags := cusumFlags(clean, mean, std, cfg.CUSUMK, cfg.CUSUMThreshold)
	pLow := stats.Percentile(clean, cfg.PercentileLow)
	pHigh := stats.Percentile(clean, cfg.PercentileHigh)

	forest := ml.NewIsolationForest(cfg.IsoEstimators, cfg.IsoRandomState)
	forest.Fit(clean)
	isoLabels, isoScores := forest.Predict(clean, contamination)

	// Slope is taken over sigma-normalized values so the drift cutoff is
	// scale invariant.
	slope := stats.IndexSlope(clean) / std

	var anomalies []models.MetricAnomaly
	for i := range clean {
		z := zScores[i]
		m := madScores[i]
		statistical := math.Abs(z) >= cfg.ZScoreThreshold ||
			math.Abs(m) >= cfg.MADThreshold ||
			cusumFlags[i]
		corroboratedIso := isoLabels[i] == -1 &&
			(math.Abs(z) >= quality.IsoCorroborationFactor*cfg.ZScoreThreshold ||
				math.Abs(m) >= quality.IsoCorroborationFactor*cfg.MADThreshold)
		if !statistical && !corroboratedIso {
			continue
		}

		severity := severityFor(z, m, isoLabels[i], cfg, sev)
		ctype := changeType(z, slope, cfg.DriftSlopeThreshold)
		v := clean[i]

		anomalies = append(anomalies, models.MetricAnomaly{
			MetricName:     metric,
			Timestamp:      cleanTs[i],
			Value:          v,
			ChangeType:     ctype,
			ZScore:         stats.Round(z, 3),
			MADScore:       stats.Round(m, 3),
			IsolationScore: stats.Round(isoScores[i], 4),
			ExpectedRange:  [2]float64{stats.Round(pLow, 4), stats.Round(pHigh, 4)},
			Severity:       severity,
			Description: fmt.Sprintf("%s: %s of %.4g (z=%+.1f, MAD=%+.1f, expected=[%.4g, %.4g])",
				metric, ctype, v, z, m, pLow, pHigh),
		})
	}

	return compressRuns(anomalies, quality.RunCompressionKeep, quality.RunGapMultiplier)
}

func isPrecisionProfile(profile string) bool {
	return strings.HasPrefix(strings.ToLower(profile), "precision")
}

func madScores(vals []float64, scale float64) []float64 {
	median := stats.Median(vals)
	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(v - median)
	}
	mad := stats.Median(devs)
	out := make([]float64, len(vals))
	if mad == 0 {
		return out
	}
	for i, v := range vals {
		out[i] = scale * (v - median) / mad
	}
	return out
}

func cusumFlags(vals []float64, mean, std, k, threshold float64) []bool {
	flags := make([]bool, len(vals))
	if std == 0 {
		return flags
	}
	pos, neg := 0.0, 0.0
	for i := 1; i < len(vals); i++ {
		normed := (vals[i] - mean) / std
		pos = math.Max(0, pos+normed-k)
		neg = math.Max(0, neg-normed-k)
		flags[i] = pos > threshold || neg > threshold
	}
	return flags
}

func severityFor(z, m float64, isoLabel int, cfg config.AnomalyConfig, sev config.SeverityConfig) models.Severity {
	score := 0.0
	az := math.Abs(z)
	for _, band := range cfg.ZScoreBands {
		if az >= band.Threshold {
			score += band.Score
			break
		}
	}
	am := math.Abs(m)
	for _, band := range cfg.MADBands {
		if am >= band.Threshold {
			score += band.Score
			break
		}
	}
	if isoLabel == -1 {
		score += cfg.IsoWeight
	}
	return models.SeverityFromScore(math.Min(score, 1.0), sev.ScoreMedium, sev.ScoreHigh, sev.ScoreCritical)
}

func changeType(z, trendSlope, driftThreshold float64) models.ChangeType {
	if math.Abs(trendSlope) > driftThreshold {
		return models.ChangeDrift
	}
	if z > 0 {
		return models.ChangeSpike
	}
	if z < 0 {
		return models.ChangeDrop
	}
	return models.ChangeShift
}

// compressRuns collapses consecutive same-type anomalies whose gaps do not
// exceed gapMultiplier times the median sample spacing, keeping the first,
// the strongest by |z| and the last of each run, capped at keepMax per run.
func compressRuns(anomalies []models.MetricAnomaly, keepMax int, gapMultiplier float64) []models.MetricAnomaly {
	if keepMax <= 0 || len(anomalies) <= keepMax {
		return anomalies
	}
	if gapMultiplier <= 0 {
		gapMultiplier = 2.0
	}

	gaps := make([]float64, 0, len(anomalies)-1)
	for i := 1; i < len(anomalies); i++ {
		gaps = append(gaps, anomalies[i].Timestamp-anomalies[i-1].Timestamp)
	}
	medianGap := stats.Median(gaps)
	if medianGap <= 0 {
		medianGap = 1
	}

	var out []models.MetricAnomaly
	run := []models.MetricAnomaly{anomalies[0]}
	flush := func() {
		out = append(out, pickFromRun(run, keepMax)...)
	}
	for i := 1; i < len(anomalies); i++ {
		cur := anomalies[i]
		prev := run[len(run)-1]
		sameRun := cur.ChangeType == prev.ChangeType &&
			cur.Timestamp-prev.Timestamp <= gapMultiplier*medianGap
		if sameRun {
			run = append(run, cur)
			continue
		}
		flush()
		run = []models.MetricAnomaly{cur}
	}
	flush()
	return out
}

func pickFromRun(run []models.MetricAnomaly, keepMax int) []models.MetricAnomaly {
	if len(run) <= keepMax {
		return run
	}
	strongest := 0
	for i, a := range run {
		if math.Abs(a.ZScore) > math.Abs(run[strongest].ZScore) {
			strongest = i
		}
	}
	picked := map[int]bool{0: true, strongest: true, len(run) - 1: true}
	idx := make([]int, 0, len(picked))
	for i := range picked {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]models.MetricAnomaly, 0, keepMax)
	for _, i := range idx {
		out = append(out, run[i])
		if len(out) >= keepMax {
			break
		}
	}
	return out
}
