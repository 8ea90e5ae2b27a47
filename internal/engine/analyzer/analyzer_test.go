package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/internal/store"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// fakeSource serves canned responses per metric query, with optional
// failures and an optional exposition scrape.
type fakeSource struct {
	metrics    map[string]*models.MetricResponse
	logs       *models.LogResponse
	traces     *models.TraceResponse
	logsErr    error
	metricsErr error
	tracesErr  error
	scrapeText string
	logQueries []string
}

func (f *fakeSource) QueryLogs(_ context.Context, query string, _, _ int64, _ int) (*models.LogResponse, error) {
	f.logQueries = append(f.logQueries, query)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	if f.logs != nil {
		return f.logs, nil
	}
	return &models.LogResponse{}, nil
}

func (f *fakeSource) QueryMetrics(_ context.Context, query string, _, _ int64, _ string) (*models.MetricResponse, error) {
	if f.metricsErr != nil {
		return nil, f.metricsErr
	}
	if resp, ok := f.metrics[query]; ok {
		return resp, nil
	}
	return &models.MetricResponse{}, nil
}

func (f *fakeSource) QueryTraces(_ context.Context, _ map[string]string, _, _ int64, _ int) (*models.TraceResponse, error) {
	if f.tracesErr != nil {
		return nil, f.tracesErr
	}
	if f.traces != nil {
		return f.traces, nil
	}
	return &models.TraceResponse{}, nil
}

// scrapingSource additionally offers an exposition scrape.
type scrapingSource struct {
	fakeSource
}

func (s *scrapingSource) Scrape(_ context.Context) (string, error) {
	return s.scrapeText, nil
}

func metricResponse(name string, start int64, step int64, values []float64) *models.MetricResponse {
	samples := make([]models.MetricSample, 0, len(values))
	for i, v := range values {
		samples = append(samples, models.MetricSample{
			Timestamp: float64(start + int64(i)*step),
			Value:     fmt.Sprintf("%g", v),
		})
	}
	return &models.MetricResponse{
		Status: "success",
		Data: models.MetricData{
			Result: []models.MetricSeries{{
				Metric: map[string]string{"__name__": name, "service": "api"},
				Values: samples,
			}},
		},
	}
}

func flatWithSpike(n int, base, spike float64) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = base + 0.01*math.Sin(float64(i))
	}
	vals[n-2] = spike
	return vals
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func testAnalyzer(t *testing.T, cfg *config.Config) *Analyzer {
	t.Helper()
	kv := cache.NewMemoryStore(1000, logger.NewNop())
	registry := store.NewTenantRegistry(kv, cfg.Store, cfg.Engine.Registry, logger.NewNop())
	return New(kv, registry, cfg, logger.NewNop())
}

func testRequest() *models.AnalyzeRequest {
	req := &models.AnalyzeRequest{
		TenantID: "acme",
		Start:    1700000000,
		End:      1700003600,
		Services: []string{"api"},
	}
	req.ApplyDefaults()
	return req
}

func TestBuildLogQuery(t *testing.T) {
	assert.Equal(t, `{job=~".+"}`, buildLogQuery(nil, `{job=~".*"}`))
	assert.Equal(t, `{service_name=~"api|checkout\.v2"}`, buildLogQuery([]string{"api", "checkout.v2"}, ""))
	assert.Equal(t, `{service_name=~".+"}`, buildLogQuery(nil, ""))
}

func TestFallbackLogSelectorsSkipPrimaryAndDuplicates(t *testing.T) {
	primary := `{service_name=~"api"}`
	selectors := fallbackLogSelectors([]string{"api"}, primary)

	assert.NotContains(t, selectors, primary)
	assert.Equal(t, []string{
		`{service=~"api"}`,
		`{service_name=~".+"}`,
		`{service=~".+"}`,
		`{}`,
	}, selectors)
}

func TestUniqueQueriesPrefersRequested(t *testing.T) {
	out := uniqueQueries([]string{"up", " up ", "rate(errors[5m])"}, []string{"default"})
	assert.Equal(t, []string{"up", "rate(errors[5m])"}, out)

	out = uniqueQueries(nil, []string{"a", "b", "a"})
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestForecastThresholdSubstringMatch(t *testing.T) {
	thresholds := map[string]float64{"memory": 0.9, "disk": 0.8}

	v, ok := forecastThreshold(`avg(container_memory_usage)`, thresholds)
	assert.True(t, ok)
	assert.Equal(t, 0.9, v)

	_, ok = forecastThreshold("http_requests_total", thresholds)
	assert.False(t, ok)
}

func TestSelectGrangerSeries(t *testing.T) {
	big := make([]float64, 30)
	small := make([]float64, 30)
	flat := make([]float64, 30)
	for i := range big {
		big[i] = float64(i * 10)
		small[i] = float64(i)
		flat[i] = 5
	}
	seriesMap := map[string][]float64{
		"q::big":   big,
		"q::small": small,
		"q::flat":  flat,
		"q::short": {1, 2, 3},
	}

	names, selected := selectGrangerSeries(seriesMap, 20, 2)
	require.Equal(t, []string{"q::big", "q::small"}, names)
	assert.Len(t, selected, 2)
}

func TestParseExposition(t *testing.T) {
	text := "# HELP up Up\n# TYPE up gauge\nup{job=\"api\"} 1\ncpu_usage 0.75\nbroken\n"
	values := parseExposition(text)

	assert.Equal(t, 1.0, values["up"])
	assert.Equal(t, 0.75, values["cpu_usage"])
	assert.NotContains(t, values, "broken")
}

func TestDedupeMetricAnomaliesKeepsStrongest(t *testing.T) {
	in := []models.MetricAnomaly{
		{MetricName: "cpu", Timestamp: 100.2, ChangeType: models.ChangeSpike, ZScore: 3, Severity: models.SeverityMedium},
		{MetricName: "cpu", Timestamp: 100.4, ChangeType: models.ChangeSpike, ZScore: 5, Severity: models.SeverityHigh},
		{MetricName: "cpu", Timestamp: 200, ChangeType: models.ChangeSpike, ZScore: 2, Severity: models.SeverityLow},
	}
	out := dedupeMetricAnomalies(in)

	require.Len(t, out, 2)
	assert.Equal(t, 5.0, out[0].ZScore)
	assert.Equal(t, 200.0, out[1].Timestamp)
}

func TestDedupeForecastsOnePerMetric(t *testing.T) {
	in := []models.TrajectoryForecast{
		{MetricName: "mem", SlopePerSecond: 0.1, Severity: models.SeverityMedium},
		{MetricName: "mem", SlopePerSecond: 0.5, Severity: models.SeverityHigh},
		{MetricName: "disk", SlopePerSecond: 0.2, Severity: models.SeverityLow},
	}
	out := dedupeForecasts(in)

	require.Len(t, out, 2)
	assert.Equal(t, "mem", out[0].MetricName)
	assert.Equal(t, 0.5, out[0].SlopePerSecond)
}

func TestNormalizeSignals(t *testing.T) {
	out := normalizeSignals([]string{
		"metric:cpu_usage", "metric:mem", "log:bursts", "trace:api", "deploy:v2", "mystery",
	})
	assert.Equal(t, []models.Signal{
		models.SignalMetrics, models.SignalLogs, models.SignalTraces, models.SignalEvents,
	}, out)
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Analyzer.DefaultMetricQueries = []string{"cpu_usage"}
	a := testAnalyzer(t, cfg)
	req := testRequest()

	source := &fakeSource{
		metrics: map[string]*models.MetricResponse{
			"cpu_usage":               metricResponse("cpu_usage", req.Start, 60, flatWithSpike(60, 1.0, 100.0)),
			cfg.Engine.SLO.ErrorQuery: metricResponse("errors", req.Start, 60, flatWithSpike(60, 2.0, 2.0)),
			cfg.Engine.SLO.TotalQuery: metricResponse("total", req.Start, 60, flatWithSpike(60, 100.0, 100.0)),
		},
	}

	report := a.Run(context.Background(), source, req)
	require.NotNil(t, report)

	assert.Equal(t, "acme", report.TenantID)
	assert.Equal(t, int64(3600), report.DurationSeconds)
	assert.NotEmpty(t, report.MetricAnomalies, "spike should be flagged")
	assert.NotNil(t, report.BudgetStatus)
	assert.NotEmpty(t, report.Summary)
	assert.Contains(t, report.Summary, "metric anomaly group")
	require.NotNil(t, report.Quality)
	assert.Equal(t, cfg.Engine.Quality.GatingProfile, report.Quality.GatingProfile)
	assert.NotEmpty(t, report.Quality.AnomalyDensity)

	// The primary log selector targets the requested service.
	require.NotEmpty(t, source.logQueries)
	assert.Equal(t, `{service_name=~"api"}`, source.logQueries[0])
}

func TestRunDegradesWhenEverySourceFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Analyzer.DefaultMetricQueries = []string{"cpu_usage"}
	a := testAnalyzer(t, cfg)

	source := &fakeSource{
		logsErr:    errors.New("loki down"),
		metricsErr: errors.New("mimir down"),
		tracesErr:  errors.New("tempo down"),
	}

	report := a.Run(context.Background(), source, testRequest())
	require.NotNil(t, report)

	joined := strings.Join(report.AnalysisWarnings, "\n")
	assert.Contains(t, joined, "Logs unavailable")
	assert.Contains(t, joined, "Traces unavailable")
	assert.Contains(t, joined, "SLO metrics unavailable")
	assert.Equal(t, models.SeverityLow, report.OverallSeverity)
	assert.Equal(t, "No anomalies detected in the analysis window.", report.Summary)
}

func TestRunUsesScrapeFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Analyzer.DefaultMetricQueries = []string{"cpu_usage"}
	a := testAnalyzer(t, cfg)
	req := testRequest()

	// Range queries succeed but return no series; the scrape carries a
	// current value for the queried metric.
	source := &scrapingSource{fakeSource: fakeSource{
		metrics:    map[string]*models.MetricResponse{},
		scrapeText: "cpu_usage 0.42\n",
	}}

	results := a.scrapeAndFill(context.Background(), source, req,
		[]queryResult{{query: "cpu_usage", resp: &models.MetricResponse{}}})

	require.NotNil(t, results[0].resp)
	require.Len(t, results[0].resp.Data.Result, 1)
	samples := results[0].resp.Data.Result[0].Values
	require.Len(t, samples, 2)
	assert.Equal(t, float64(req.Start), samples[0].Timestamp)
	assert.Equal(t, float64(req.End), samples[1].Timestamp)
	v, err := samples[0].Float()
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)
}

func TestProcessMetricsStopsAfterStageDeadline(t *testing.T) {
	cfg := testConfig(t)
	a := testAnalyzer(t, cfg)
	req := testRequest()
	source := &fakeSource{metrics: map[string]*models.MetricResponse{
		"cpu_usage": metricResponse("cpu_usage", req.Start, 15, flatWithSpike(40, 0.5, 10)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	anomalies, changePoints, forecasts, degradations, series := a.processMetrics(
		ctx, source, req, []string{"cpu_usage"}, 3.0, 3600)

	assert.Empty(t, anomalies)
	assert.Empty(t, changePoints)
	assert.Empty(t, forecasts)
	assert.Empty(t, degradations)
	assert.Empty(t, series)
}

func TestCapAnomalyDensity(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Quality.DensityCapPerMetricHour = 2
	a := testAnalyzer(t, cfg)

	var anomalies []models.MetricAnomaly
	for i := 0; i < 10; i++ {
		anomalies = append(anomalies, models.MetricAnomaly{
			MetricName: "cpu",
			Timestamp:  float64(100 + i),
			ZScore:     float64(i),
			Severity:   models.SeverityMedium,
		})
	}

	suppression := map[string]int{}
	var warnings []string
	kept := a.capAnomalyDensity(anomalies, 1.0, suppression, &warnings)

	assert.Len(t, kept, 2)
	assert.Equal(t, 8, suppression["density_suppressed_metric_anomalies"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "density cap")
	// Strongest z-scores survive.
	for _, anomaly := range kept {
		assert.GreaterOrEqual(t, anomaly.ZScore, 8.0)
	}
}

func TestQualityGatesOnlyFireUnderPrecisionProfile(t *testing.T) {
	anomaliesFor := func() []models.MetricAnomaly {
		var out []models.MetricAnomaly
		for i := 0; i < 10; i++ {
			out = append(out, models.MetricAnomaly{
				MetricName: "cpu",
				Timestamp:  float64(100 + i),
				ZScore:     float64(i),
				Severity:   models.SeverityMedium,
			})
		}
		return out
	}

	cfg := testConfig(t)
	cfg.Engine.Quality.GatingProfile = "precision_strict_v1"
	cfg.Engine.Quality.DensityCapPerMetricHour = 1
	a := testAnalyzer(t, cfg)

	suppression := map[string]int{}
	var warnings []string
	kept, _, _, quality := a.applyQualityGates(anomaliesFor(), nil, nil, 3600, suppression, &warnings)
	assert.Len(t, kept, 1)
	assert.Equal(t, 9, quality.SuppressionCounts["density_suppressed_metric_anomalies"])

	// A non-precision profile leaves every finding untouched.
	cfg.Engine.Quality.GatingProfile = "balanced_v1"
	suppression = map[string]int{}
	warnings = nil
	kept, _, _, quality = a.applyQualityGates(anomaliesFor(), nil, nil, 3600, suppression, &warnings)
	assert.Len(t, kept, 10)
	assert.Empty(t, quality.SuppressionCounts)
	assert.Empty(t, warnings)
}

func TestSuppressLowConfidenceKeepsLoneCause(t *testing.T) {
	cfg := testConfig(t)
	a := testAnalyzer(t, cfg)

	causes := []models.RootCause{{Hypothesis: "weak", Confidence: 0.01}}
	ranked := []models.RankedCause{{RootCause: causes[0]}}

	suppression := map[string]int{}
	var warnings []string
	kept, keptRanked := a.suppressLowConfidence(causes, ranked, suppression, &warnings)

	assert.Len(t, kept, 1)
	assert.Len(t, keptRanked, 1)
	assert.Empty(t, suppression)
}

func TestSuppressLowConfidenceDropsWeakAmongMany(t *testing.T) {
	cfg := testConfig(t)
	a := testAnalyzer(t, cfg)

	causes := []models.RootCause{
		{Hypothesis: "strong", Confidence: 0.8},
		{Hypothesis: "weak", Confidence: 0.02},
	}
	ranked := []models.RankedCause{
		{RootCause: causes[0], FinalScore: 0.8},
		{RootCause: causes[1], FinalScore: 0.02},
	}

	suppression := map[string]int{}
	var warnings []string
	kept, keptRanked := a.suppressLowConfidence(causes, ranked, suppression, &warnings)

	require.Len(t, kept, 1)
	assert.Equal(t, "strong", kept[0].Hypothesis)
	require.Len(t, keptRanked, 1)
	assert.Equal(t, "strong", keptRanked[0].RootCause.Hypothesis)
	assert.Equal(t, 1, suppression["low_confidence_root_causes"])
	assert.Equal(t, 1, suppression["suppressed_ranked_causes"])
}

func TestSuppressLowConfidenceKeepsAllWhenEveryCauseIsWeak(t *testing.T) {
	cfg := testConfig(t)
	a := testAnalyzer(t, cfg)

	causes := []models.RootCause{
		{Hypothesis: "weak-a", Confidence: 0.02},
		{Hypothesis: "weak-b", Confidence: 0.01},
	}
	ranked := []models.RankedCause{
		{RootCause: causes[0]},
		{RootCause: causes[1]},
	}

	suppression := map[string]int{}
	var warnings []string
	kept, keptRanked := a.suppressLowConfidence(causes, ranked, suppression, &warnings)

	assert.Len(t, kept, 2)
	assert.Len(t, keptRanked, 2)
	assert.Empty(t, suppression)
}

func TestEnforceCorroborationTruncatesSingleSignalCauses(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Quality.MinCorroborationSignals = 2
	cfg.Engine.Quality.MaxCausesWithoutMultiSig = 1
	a := testAnalyzer(t, cfg)

	causes := []models.RootCause{
		{Hypothesis: "a", Confidence: 0.8, ContributingSignals: []models.Signal{models.SignalMetrics}},
		{Hypothesis: "b", Confidence: 0.7, ContributingSignals: []models.Signal{models.SignalLogs}},
	}
	ranked := []models.RankedCause{
		{RootCause: causes[0]},
		{RootCause: causes[1]},
	}

	suppression := map[string]int{}
	var warnings []string
	kept, keptRanked := a.enforceCorroboration(causes, ranked, suppression, &warnings)

	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].Hypothesis)
	assert.Len(t, keptRanked, 1)
	assert.Equal(t, 1, suppression["root_causes_without_multisignal"])

	// One multi-signal cause lifts the gate for the whole list.
	causes[1].ContributingSignals = []models.Signal{models.SignalMetrics, models.SignalLogs}
	kept, _ = a.enforceCorroboration(causes, ranked, map[string]int{}, &warnings)
	assert.Len(t, kept, 2)
}

func TestAnnotateCause(t *testing.T) {
	multi := models.RootCause{ContributingSignals: []models.Signal{models.SignalMetrics, models.SignalLogs}}
	annotateCause(&multi, "precision_strict_v1", 2)
	assert.Equal(t, "2 corroborating signal(s): metrics, logs", multi.CorroborationSummary)
	assert.Equal(t, true, multi.SuppressionDiagnostics["meets_min_corroboration_signals"])

	single := models.RootCause{ContributingSignals: []models.Signal{models.SignalMetrics}}
	annotateCause(&single, "precision_strict_v1", 2)
	assert.Equal(t, "single-signal evidence", single.CorroborationSummary)
	assert.Equal(t, false, single.SuppressionDiagnostics["meets_min_corroboration_signals"])
}

func TestBuildSummaryFormats(t *testing.T) {
	report := &models.AnalysisReport{
		OverallSeverity: models.SeverityHigh,
		MetricAnomalies: []models.MetricAnomaly{
			{MetricName: "cpu", Timestamp: 100, Severity: models.SeverityHigh},
		},
		LogBursts: []models.LogBurst{{Ratio: 5}},
		ErrorPropagation: []models.ErrorPropagation{
			{SourceService: "db"},
		},
		RootCauses: []models.RootCause{
			{Hypothesis: strings.Repeat("x", 150)},
		},
	}

	summary := buildSummary(report, 60)
	assert.True(t, strings.HasPrefix(summary, "[HIGH] "), summary)
	assert.Contains(t, summary, "1 metric anomaly group(s)")
	assert.Contains(t, summary, "1 log burst(s)")
	assert.Contains(t, summary, "error propagation from db")
	assert.Contains(t, summary, "Top: "+strings.Repeat("x", 120)+"...")
}

func TestBuildSummaryEmpty(t *testing.T) {
	report := &models.AnalysisReport{OverallSeverity: models.SeverityLow}
	assert.Equal(t, "No anomalies detected in the analysis window.", buildSummary(report, 60))
}

func TestOverallSeverityPicksMax(t *testing.T) {
	severity := overallSeverity(
		[]models.MetricAnomaly{{Severity: models.SeverityMedium}},
		nil, nil,
		[]models.ServiceLatency{{Severity: models.SeverityCritical}},
		nil, nil)
	assert.Equal(t, models.SeverityCritical, severity)
}
