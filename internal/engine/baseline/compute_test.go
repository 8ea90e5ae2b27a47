package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
)

func baselineConfig() config.BaselineConfig {
	return config.BaselineConfig{
		ZScoreThreshold:    3.0,
		MinSamples:         6,
		SeasonalMinSamples: 24,
		BlendMinSamples:    20,
		BlendAlpha:         0.1,
	}
}

func TestComputeSmallSample(t *testing.T) {
	b := Compute([]float64{0, 1, 2}, []float64{10, 10, 10}, 0, baselineConfig())
	assert.Equal(t, 10.0, b.Mean)
	assert.Equal(t, 1.0, b.Std, "zero std floors to 1.0")
	assert.Equal(t, 7.0, b.Lower)
	assert.Equal(t, 13.0, b.Upper)
	assert.Equal(t, 3, b.SampleCount)
	assert.Nil(t, b.SeasonalMean)
}

func TestComputeBoundsOrdering(t *testing.T) {
	ts := make([]float64, 10)
	vals := []float64{4, 5, 6, 5, 4, 6, 5, 4, 6, 5}
	for i := range ts {
		ts[i] = float64(i * 60)
	}

	b := Compute(ts, vals, 0, baselineConfig())
	assert.LessOrEqual(t, b.Lower, b.Mean)
	assert.LessOrEqual(t, b.Mean, b.Upper)
	assert.Greater(t, b.Std, 0.0)
}

func TestComputeSeasonal(t *testing.T) {
	// Two samples per hour over 24 hours with a per-hour level and tight
	// in-hour noise. Detrending should shrink std well below the raw one.
	var ts, vals []float64
	for h := 0; h < 24; h++ {
		level := float64(h * 10)
		ts = append(ts, float64(h*3600), float64(h*3600+1800))
		vals = append(vals, level-0.5, level+0.5)
	}

	b := Compute(ts, vals, 0, baselineConfig())
	require.NotNil(t, b.SeasonalMean)
	assert.InDelta(t, 115.0, *b.SeasonalMean, 1e-9)
	assert.InDelta(t, 0.5, b.Std, 1e-9)
	assert.Equal(t, 48, b.SampleCount)
}

func TestScore(t *testing.T) {
	b := models.Baseline{Mean: 10, Std: 2, Lower: 4, Upper: 16}

	out, z := Score(20, b)
	assert.True(t, out)
	assert.Equal(t, 5.0, z)

	in, z := Score(11, b)
	assert.False(t, in)
	assert.Equal(t, 0.5, z)
}

func TestBlendWeightsCachedSide(t *testing.T) {
	cached := models.Baseline{Mean: 100, Std: 10, SampleCount: 50}
	fresh := models.Baseline{Mean: 200, Std: 20, SampleCount: 10}

	b := Blend(cached, fresh, 0.1)
	assert.InDelta(t, 110.0, b.Mean, 1e-9)
	assert.InDelta(t, 11.0, b.Std, 1e-9)
	assert.InDelta(t, b.Mean-3*b.Std, b.Lower, 1e-6)
	assert.InDelta(t, b.Mean+3*b.Std, b.Upper, 1e-6)
	assert.Equal(t, 60, b.SampleCount)
}

func TestBlendKeepsCachedSeasonalWhenFreshMissing(t *testing.T) {
	sm := 42.0
	cached := models.Baseline{Mean: 1, Std: 1, SeasonalMean: &sm, SampleCount: 30}
	fresh := models.Baseline{Mean: 1, Std: 1, SampleCount: 5}

	b := Blend(cached, fresh, 0.1)
	require.NotNil(t, b.SeasonalMean)
	assert.Equal(t, 42.0, *b.SeasonalMean)
}
