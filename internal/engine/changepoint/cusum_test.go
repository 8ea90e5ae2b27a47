package changepoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
)

func changepointConfig() config.ChangepointConfig {
	return config.ChangepointConfig{
		Window:                   10,
		K:                        0.5,
		RelativeCutoff:           0.5,
		ThresholdSigma:           5.0,
		OscillationDensityCutoff: 0.3,
	}
}

func series(vals []float64) (ts []float64) {
	ts = make([]float64, len(vals))
	for i := range vals {
		ts[i] = float64(i)
	}
	return ts
}

func stepSeries() []float64 {
	vals := make([]float64, 30)
	for i := range vals {
		if i < 20 {
			vals[i] = 1.0
		} else {
			vals[i] = 100.0
		}
	}
	return vals
}

func TestDetectEmitsOnLevelStep(t *testing.T) {
	vals := stepSeries()
	points := Detect("m", series(vals), vals, 0, changepointConfig())
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Index, 20, "change points should land in the shifted region")
		assert.Equal(t, "m", p.MetricName)
	}
}

func TestDetectScaleInvariant(t *testing.T) {
	vals := stepSeries()
	scaled := make([]float64, len(vals))
	for i, v := range vals {
		scaled[i] = 1000 * v
	}

	a := Detect("m", series(vals), vals, 0, changepointConfig())
	b := Detect("m", series(scaled), scaled, 0, changepointConfig())

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Index, b[i].Index)
		assert.Equal(t, a[i].ChangeType, b[i].ChangeType)
		assert.InDelta(t, a[i].Magnitude, b[i].Magnitude, 1e-6)
	}
}

func TestDetectOscillation(t *testing.T) {
	vals := make([]float64, 20)
	for i := range vals {
		if i%2 == 1 {
			vals[i] = 10.0
		}
	}

	points := Detect("m", series(vals), vals, 0.4, changepointConfig())
	require.NotEmpty(t, points)
	assert.Equal(t, models.ChangeOscillation, points[0].ChangeType)
}

func TestDetectGuards(t *testing.T) {
	assert.Nil(t, Detect("m", []float64{1, 2, 3}, []float64{1, 2, 3}, 0, changepointConfig()))

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 4.0
	}
	assert.Nil(t, Detect("m", series(flat), flat, 0, changepointConfig()))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.ChangeSpike, classify(10, 50, 5, 0.5))
	assert.Equal(t, models.ChangeDrop, classify(50, 10, 5, 0.5))
	assert.Equal(t, models.ChangeShift, classify(100, 104, 1, 0.5))
	assert.Equal(t, models.ChangeDrift, classify(100, 100.5, 1, 0.5))
}
