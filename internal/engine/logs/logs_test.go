package logs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
)

func logsConfig() config.LogsConfig {
	return config.LogsConfig{
		FrequencyWindowSeconds: 10.0,
		BurstRatioBands: []config.BurstBand{
			{Ratio: 10.0, Severity: "critical"},
			{Ratio: 5.0, Severity: "high"},
			{Ratio: 2.5, Severity: "medium"},
		},
		NoiseRegex:             `(?i)\b(?:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}|0x[0-9a-f]+|\b\d{4,}\b)\b`,
		NormalizedLengthCutoff: 180,
		SampleSnippet:          300,
		TokenCap:               500,
		ResultsLimit:           100,
		MinDurationSeconds:     1.0,
	}
}

func logResponse(entries ...[2]string) *models.LogResponse {
	return &models.LogResponse{
		Data: models.LogData{Result: []models.LogStream{{Values: entries}}},
	}
}

func atSecond(sec float64, line string) [2]string {
	return [2]string{fmt.Sprintf("%.0f", sec*1e9), line}
}

func TestDetectBurstsFlagsVolumeSpike(t *testing.T) {
	var entries [][2]string
	for i := 0; i <= 100; i++ {
		entries = append(entries, atSecond(float64(i), "steady traffic"))
	}
	for i := 0; i < 60; i++ {
		entries = append(entries, atSecond(50.0+float64(i)*0.01, "request handled"))
	}

	bursts := DetectBursts(logResponse(entries...), logsConfig())
	require.NotEmpty(t, bursts)

	found := false
	for _, b := range bursts {
		if b.WindowStart <= 50 && b.WindowEnd > 50 {
			found = true
			assert.GreaterOrEqual(t, b.Ratio, 2.5)
			assert.Greater(t, b.RatePerSecond, b.BaselineRate)
		}
	}
	assert.True(t, found, "burst window around t=50 expected")
}

func TestDetectBurstsQuietOnUniformTraffic(t *testing.T) {
	var entries [][2]string
	for i := 0; i <= 100; i++ {
		entries = append(entries, atSecond(float64(i), "steady"))
	}
	assert.Empty(t, DetectBursts(logResponse(entries...), logsConfig()))
}

func TestDetectBurstsGuards(t *testing.T) {
	assert.Nil(t, DetectBursts(nil, logsConfig()))
	assert.Nil(t, DetectBursts(logResponse(atSecond(1, "only one")), logsConfig()))
}

func TestAnalyzePatternsGroupsByShape(t *testing.T) {
	resp := logResponse(
		atSecond(1, "request 0x1a2b3c4d failed"),
		atSecond(2, "request 0xdeadbeef failed"),
		atSecond(3, "request 0xcafebabe failed"),
		atSecond(4, "cache warmup complete"),
	)

	patterns := AnalyzePatterns(resp, logsConfig())
	require.Len(t, patterns, 2)

	// The failing pattern outranks the informational one.
	assert.Equal(t, "request <_> failed", patterns[0].Pattern)
	assert.Equal(t, 3, patterns[0].Count)
	assert.Equal(t, models.SeverityHigh, patterns[0].Severity)
	assert.Equal(t, "request 0x1a2b3c4d failed", patterns[0].Sample)
	assert.Equal(t, models.SeverityLow, patterns[1].Severity)
}

func TestAnalyzePatternsSeverityEscalates(t *testing.T) {
	resp := logResponse(
		atSecond(1, "worker pool warning"),
		atSecond(2, "worker pool panic"),
	)

	patterns := AnalyzePatterns(resp, logsConfig())
	var sevs []models.Severity
	for _, p := range patterns {
		sevs = append(sevs, p.Severity)
	}
	assert.Contains(t, sevs, models.SeverityCritical)
}

func TestClassifyLine(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, classifyLine("process killed by oom"))
	assert.Equal(t, models.SeverityHigh, classifyLine("connection refused"))
	assert.Equal(t, models.SeverityMedium, classifyLine("retrying in 5s"))
	assert.Equal(t, models.SeverityLow, classifyLine("started ok"))
}

func TestTokenEntropy(t *testing.T) {
	assert.Equal(t, 0.0, tokenEntropy(nil))
	assert.Equal(t, 0.0, tokenEntropy([]string{"a", "a", "a"}))
	assert.InDelta(t, 1.0, tokenEntropy([]string{"a", "b"}), 1e-9)
}
