package traces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
)

func tracesConfig() config.TracesConfig {
	return config.TracesConfig{
		ErrorRateThreshold:    0.05,
		ErrorSeverityHigh:     0.10,
		ErrorSeverityCritical: 0.25,
		LatencyP99Critical:    5000.0,
		LatencyP99High:        2000.0,
		LatencyP99Medium:      500.0,
		LatencyErrorCritical:  0.25,
		LatencyErrorHigh:      0.10,
		LatencyErrorMedium:    0.02,
		ApdexPoor:             0.5,
		ApdexMarginal:         0.7,
		ApdexTMs:              500.0,
	}
}

func sevConfig() config.SeverityConfig {
	return config.SeverityConfig{ScoreMedium: 0.25, ScoreHigh: 0.50, ScoreCritical: 0.75}
}

func trace(service, op string, durationMs float64, withError bool) models.Trace {
	t := models.Trace{RootServiceName: service, RootTraceName: op, DurationMs: durationMs}
	if withError {
		t.SpanSets = []models.SpanSet{{Spans: []models.Span{{
			Attributes: []models.SpanAttribute{{
				Key:   "status.code",
				Value: models.AttrValue{StringValue: "STATUS_CODE_ERROR"},
			}},
		}}}}
	}
	return t
}

func TestAnalyzeLatencyFlagsSlowErroringService(t *testing.T) {
	var ts []models.Trace
	for i := 0; i < 8; i++ {
		ts = append(ts, trace("checkout", "POST /pay", 6000, i < 3))
	}
	for i := 0; i < 8; i++ {
		ts = append(ts, trace("catalog", "GET /items", 50, false))
	}

	out := AnalyzeLatency(&models.TraceResponse{Traces: ts}, 0, tracesConfig(), sevConfig())
	require.Len(t, out, 1, "healthy service should not be reported")

	sl := out[0]
	assert.Equal(t, "checkout", sl.Service)
	assert.Equal(t, "POST /pay", sl.Operation)
	assert.Equal(t, 6000.0, sl.P99Ms)
	assert.Equal(t, models.SeverityCritical, sl.Severity)
	assert.InDelta(t, 0.375, sl.ErrorRate, 1e-9)
	assert.Equal(t, 0.0, sl.Apdex)
	assert.Equal(t, 8, sl.SampleCount)
}

func TestAnalyzeLatencyWindowFromNanoTimestamps(t *testing.T) {
	tr := trace("api", "GET /", 1000, true)
	tr.StartTimeUnixNano = "1700000000000000000"
	errRates := tracesConfig()

	// force reporting by making every trace an error
	out := AnalyzeLatency(&models.TraceResponse{Traces: []models.Trace{tr}}, 0, errRates, sevConfig())
	require.Len(t, out, 1)
	require.NotNil(t, out[0].WindowStart)
	require.NotNil(t, out[0].WindowEnd)
	assert.InDelta(t, 1.7e9, *out[0].WindowStart, 1)
	assert.InDelta(t, *out[0].WindowStart+1.0, *out[0].WindowEnd, 1e-6)
}

func TestApdexScore(t *testing.T) {
	assert.Equal(t, 1.0, apdexScore(nil, 500))
	// 2 satisfied, 1 tolerating, 1 frustrated
	assert.InDelta(t, 0.625, apdexScore([]float64{100, 400, 900, 3000}, 500), 1e-9)
}

func TestDetectPropagationPairsSourcesWithAffected(t *testing.T) {
	var ts []models.Trace
	for i := 0; i < 10; i++ {
		ts = append(ts, trace("db", "query", 10, i < 4))
	}
	for i := 0; i < 20; i++ {
		ts = append(ts, trace("api", "handle", 10, i < 1))
	}
	for i := 0; i < 10; i++ {
		ts = append(ts, trace("cache", "get", 10, false))
	}

	out := DetectPropagation(&models.TraceResponse{Traces: ts}, tracesConfig())
	require.Len(t, out, 2)

	assert.Equal(t, "db", out[0].SourceService)
	assert.InDelta(t, 0.4, out[0].ErrorRate, 1e-9)
	assert.Equal(t, models.SeverityCritical, out[0].Severity)
	assert.Equal(t, []string{"api"}, out[0].AffectedServices)

	assert.Equal(t, "api", out[1].SourceService)
	assert.Equal(t, models.SeverityMedium, out[1].Severity)
	assert.Equal(t, []string{"db"}, out[1].AffectedServices)
}

func TestDetectPropagationNoSources(t *testing.T) {
	var ts []models.Trace
	for i := 0; i < 100; i++ {
		ts = append(ts, trace("svc", "op", 10, i == 0))
	}
	assert.Empty(t, DetectPropagation(&models.TraceResponse{Traces: ts}, tracesConfig()))
}

func TestToSecondsScaling(t *testing.T) {
	v := toSeconds("1700000000000000000")
	require.NotNil(t, v)
	assert.InDelta(t, 1.7e9, *v, 1)

	ms := toSeconds("1700000000000")
	require.NotNil(t, ms)
	assert.InDelta(t, 1.7e9, *ms, 1)

	assert.Nil(t, toSeconds(""))
	assert.Nil(t, toSeconds("bogus"))
}
