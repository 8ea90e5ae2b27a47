// Package analyzer orchestrates one RCA run: fan-out fetch of the four
// telemetry surfaces, per-series statistical detection, cross-signal
// correlation, causal inference, hypothesis generation and ranking, and
// the precision quality gates over the assembled report.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/causal"
	"github.com/platformbuilds/becertain-core/internal/engine/correlation"
	"github.com/platformbuilds/becertain-core/internal/engine/events"
	"github.com/platformbuilds/becertain-core/internal/engine/logs"
	"github.com/platformbuilds/becertain-core/internal/engine/ml"
	"github.com/platformbuilds/becertain-core/internal/engine/rca"
	"github.com/platformbuilds/becertain-core/internal/engine/slo"
	"github.com/platformbuilds/becertain-core/internal/engine/topology"
	"github.com/platformbuilds/becertain-core/internal/engine/traces"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/internal/monitoring"
	"github.com/platformbuilds/becertain-core/internal/store"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// DataSource is the telemetry query surface the analyzer consumes.
// *datasources.Provider satisfies it.
type DataSource interface {
	QueryLogs(ctx context.Context, query string, startNs, endNs int64, limit int) (*models.LogResponse, error)
	QueryMetrics(ctx context.Context, query string, start, end int64, step string) (*models.MetricResponse, error)
	QueryTraces(ctx context.Context, filters map[string]string, start, end int64, limit int) (*models.TraceResponse, error)
}

// Scraper is the optional last-resort metrics capability a DataSource may
// also implement.
type Scraper interface {
	Scrape(ctx context.Context) (string, error)
}

// Analyzer runs the full pipeline against a tenant's data sources and
// persisted state.
type Analyzer struct {
	baselines *store.BaselineStore
	granger   *store.GrangerStore
	registry  *store.TenantRegistry
	cfg       *config.Config
	log       logger.Logger
}

func New(kv cache.KVStore, registry *store.TenantRegistry, cfg *config.Config, log logger.Logger) *Analyzer {
	return &Analyzer{
		baselines: store.NewBaselineStore(kv, cfg.Store, cfg.Engine.Baseline, log),
		granger:   store.NewGrangerStore(kv, cfg.Store, log),
		registry:  registry,
		cfg:       cfg,
		log:       log,
	}
}

// fetched carries the results of the parallel fetch stage. Each surface
// fails independently; failures degrade the report instead of aborting it.
type fetched struct {
	logs      *models.LogResponse
	logsErr   error
	traces    *models.TraceResponse
	tracesErr error
	sloErr    *models.MetricResponse
	sloErrErr error
	sloTot    *models.MetricResponse
	sloTotErr error
}

// Run executes one analysis. It never returns an error: every stage
// failure is converted into a report warning.
func (a *Analyzer) Run(ctx context.Context, provider DataSource, req *models.AnalyzeRequest) *models.AnalysisReport {
	started := time.Now()
	eng := a.cfg.Engine
	var warnings []string
	suppression := map[string]int{}

	primaryService := ""
	if len(req.Services) > 0 {
		primaryService = req.Services[0]
	}
	sloService := primaryService
	if sloService == "" {
		sloService = "global"
	}
	windowSeconds := req.WindowSeconds()

	logQuery := buildLogQuery(req.Services, req.LogQuery)
	traceFilters := map[string]string{}
	if primaryService != "" {
		traceFilters["service.name"] = primaryService
	}
	queries := uniqueQueries(req.MetricQueries, eng.Analyzer.DefaultMetricQueries)

	zThreshold := eng.Baseline.ZScoreThreshold
	if req.Sensitivity > 0 {
		zThreshold = 1.0 + req.Sensitivity*eng.Anomaly.SensitivityFactor
	}

	f := a.fetchStage(ctx, provider, req, logQuery, traceFilters)

	// Metrics pipeline: anomalies, change points, forecasts, degradation,
	// plus the raw value series the causal stage reuses.
	metricsStarted := time.Now()
	metricsCtx, cancelMetrics := context.WithTimeout(ctx, seconds(eng.Analyzer.MetricsStageTimeoutSeconds))
	metricAnomalies, changePoints, forecasts, degradations, seriesMap := a.processMetrics(
		metricsCtx, provider, req, queries, zThreshold, windowSeconds)
	timedOut := metricsCtx.Err() == context.DeadlineExceeded
	cancelMetrics()
	if timedOut {
		warnings = append(warnings, fmt.Sprintf(
			"Metrics stage timed out after %gs; returning partial report.",
			eng.Analyzer.MetricsStageTimeoutSeconds))
	}
	monitoring.RecordAnalyzerStage("metrics", time.Since(metricsStarted), !timedOut)

	rawAnomalyCount := len(metricAnomalies)
	rawChangePointCount := len(changePoints)
	metricAnomalies = dedupeMetricAnomalies(metricAnomalies)
	changePoints = dedupeChangePoints(changePoints)
	forecasts = dedupeForecasts(forecasts)
	degradations = dedupeDegradations(degradations)
	if rawAnomalyCount > len(metricAnomalies) {
		suppression["duplicate_metric_anomalies"] = rawAnomalyCount - len(metricAnomalies)
		warnings = append(warnings, fmt.Sprintf(
			"Deduplicated metric anomalies from %d to %d to reduce duplicate series noise.",
			rawAnomalyCount, len(metricAnomalies)))
	}
	if rawChangePointCount > len(changePoints) {
		suppression["duplicate_change_points"] = rawChangePointCount - len(changePoints)
		warnings = append(warnings, fmt.Sprintf(
			"Deduplicated change points from %d to %d to reduce duplicate series noise.",
			rawChangePointCount, len(changePoints)))
	}

	logBursts, logPatterns := a.logsStage(ctx, provider, req, logQuery, f, &warnings)
	serviceLatency, errorPropagation, graph := a.tracesStage(ctx, provider, req, traceFilters, f, &warnings)
	sloAlerts, budget := a.sloStage(sloService, req, f, &warnings)

	correlateStarted := time.Now()
	logMetricLinks := correlation.LinkLogsToMetrics(metricAnomalies, logBursts, eng.Correlation.MaxLagSeconds, eng.Correlation)
	correlatedEvents := correlation.Correlate(metricAnomalies, logBursts, serviceLatency, req.CorrelationWindowSeconds, eng.Correlation)
	anomalyClusters := ml.Cluster(metricAnomalies, eng.Cluster.Eps, eng.Cluster.MinSamples)
	monitoring.RecordAnalyzerStage("correlate", time.Since(correlateStarted), true)

	causalStarted := time.Now()
	grangerResults := a.causalStage(ctx, req.TenantID, sloService, seriesMap, &warnings)

	deployEvents := a.registry.EventsInWindow(ctx, req.TenantID, float64(req.Start), float64(req.End))
	bayesianScores := causal.ScoreCategories(causal.Evidence{
		HasDeploymentEvent:  len(deployEvents) > 0,
		HasMetricSpike:      len(metricAnomalies) > 0,
		HasLogBurst:         len(logBursts) > 0,
		HasLatencySpike:     len(serviceLatency) > 0,
		HasErrorPropagation: len(errorPropagation) > 0,
	}, eng.Causal)

	eventRegistry := events.NewRegistry()
	eventRegistry.RegisterMany(deployEvents)

	causes := rca.Generate(rca.Inputs{
		MetricAnomalies:  metricAnomalies,
		LogBursts:        logBursts,
		LogPatterns:      logPatterns,
		ServiceLatency:   serviceLatency,
		ErrorPropagation: errorPropagation,
		CorrelatedEvents: correlatedEvents,
		Graph:            graph,
		EventRegistry:    eventRegistry,
	}, eng.RCA, eng.Correlation, eng.Severity, eng.Topology.MaxDepth)
	causes = rca.DedupeByHypothesis(causes)
	ranked := ml.Rank(causes, correlatedEvents, eng.Ranking)

	rootCauses, rankedCauses := toReportCauses(ranked)
	monitoring.RecordAnalyzerStage("causal", time.Since(causalStarted), true)

	metricAnomalies, changePoints, rootCauses, rankedCauses, anomalyClusters, grangerResults = a.limitOutput(
		metricAnomalies, changePoints, rootCauses, rankedCauses, anomalyClusters, grangerResults, &warnings)

	var quality *models.AnalysisQuality
	metricAnomalies, rootCauses, rankedCauses, quality = a.applyQualityGates(
		metricAnomalies, rootCauses, rankedCauses, windowSeconds, suppression, &warnings)

	severity := overallSeverity(metricAnomalies, logBursts, logPatterns, serviceLatency, sloAlerts, forecasts)
	hasActionable := len(metricAnomalies) > 0 || len(logBursts) > 0 || len(logPatterns) > 0 ||
		len(serviceLatency) > 0 || len(errorPropagation) > 0 || len(sloAlerts) > 0 || len(rootCauses) > 0
	if !hasActionable && (len(forecasts) > 0 || len(degradations) > 0 || len(changePoints) > 0) {
		if severity.Weight() > models.SeverityMedium.Weight() {
			warnings = append(warnings,
				"Overall severity was capped at MEDIUM because only predictive signals were present "+
					"without corroborating actionable anomalies.")
			severity = models.SeverityMedium
		}
	}

	report := &models.AnalysisReport{
		TenantID:           req.TenantID,
		Start:              req.Start,
		End:                req.End,
		DurationSeconds:    req.End - req.Start,
		MetricAnomalies:    metricAnomalies,
		LogBursts:          logBursts,
		LogPatterns:        logPatterns,
		ServiceLatency:     serviceLatency,
		ErrorPropagation:   errorPropagation,
		SloAlerts:          sloAlerts,
		BudgetStatus:       budget,
		RootCauses:         rootCauses,
		RankedCauses:       rankedCauses,
		ChangePoints:       changePoints,
		LogMetricLinks:     logMetricLinks,
		Forecasts:          forecasts,
		DegradationSignals: degradations,
		AnomalyClusters:    anomalyClusters,
		GrangerResults:     grangerResults,
		BayesianScores:     bayesianScores,
		AnalysisWarnings:   warnings,
		OverallSeverity:    severity,
		Quality:            quality,
	}
	report.Summary = buildSummary(report, eng.Dedup.TimeWindowSeconds)

	monitoring.RecordAnalysis(req.TenantID, string(severity))
	a.log.Info("analysis complete",
		"tenant_id", req.TenantID,
		"service", sloService,
		"duration", time.Since(started),
		"warnings", len(warnings))
	return report
}

// fetchStage gathers logs, traces and the two SLO series in parallel under
// one deadline.
func (a *Analyzer) fetchStage(ctx context.Context, provider DataSource, req *models.AnalyzeRequest, logQuery string, traceFilters map[string]string) fetched {
	fetchStarted := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, seconds(a.cfg.Engine.Analyzer.FetchTimeoutSeconds))
	defer cancel()

	var f fetched
	done := make(chan struct{}, 4)
	go func() {
		f.logs, f.logsErr = provider.QueryLogs(fetchCtx, logQuery, req.Start*1_000_000_000, req.End*1_000_000_000, 0)
		done <- struct{}{}
	}()
	go func() {
		f.traces, f.tracesErr = provider.QueryTraces(fetchCtx, traceFilters, req.Start, req.End, 0)
		done <- struct{}{}
	}()
	go func() {
		f.sloErr, f.sloErrErr = provider.QueryMetrics(fetchCtx, a.cfg.Engine.SLO.ErrorQuery, req.Start, req.End, req.Step)
		done <- struct{}{}
	}()
	go func() {
		f.sloTot, f.sloTotErr = provider.QueryMetrics(fetchCtx, a.cfg.Engine.SLO.TotalQuery, req.Start, req.End, req.Step)
		done <- struct{}{}
	}()
	for i := 0; i < 4; i++ {
		<-done
	}

	ok := f.logsErr == nil && f.tracesErr == nil && f.sloErrErr == nil && f.sloTotErr == nil
	monitoring.RecordAnalyzerStage("fetch", time.Since(fetchStarted), ok)
	return f
}

// logsStage runs burst and pattern analysis, retrying generic selectors
// when the primary query matched nothing and the caller did not pin one.
func (a *Analyzer) logsStage(ctx context.Context, provider DataSource, req *models.AnalyzeRequest, logQuery string, f fetched, warnings *[]string) ([]models.LogBurst, []models.LogPattern) {
	logsStarted := time.Now()
	defer func() { monitoring.RecordAnalyzerStage("logs", time.Since(logsStarted), f.logsErr == nil) }()

	if f.logsErr != nil {
		msg := fmt.Sprintf("Logs unavailable: %v", f.logsErr)
		*warnings = append(*warnings, msg)
		a.log.Warn(msg)
		return nil, nil
	}

	resp := f.logs
	if resp == nil {
		resp = &models.LogResponse{}
	}
	if len(resp.Data.Result) == 0 && req.LogQuery == "" {
		for _, selector := range fallbackLogSelectors(req.Services, logQuery) {
			fallback, err := provider.QueryLogs(ctx, selector, req.Start*1_000_000_000, req.End*1_000_000_000, 0)
			if err != nil {
				a.log.Debug("logs fallback selector failed", "query", selector, "error", err)
				continue
			}
			if fallback != nil && len(fallback.Data.Result) > 0 {
				a.log.Info("logs selector fallback succeeded", "query", selector)
				resp = fallback
				break
			}
		}
	}
	if len(resp.Data.Result) == 0 {
		*warnings = append(*warnings, "Logs query returned no entries in the selected window.")
	}

	return logs.DetectBursts(resp, a.cfg.Engine.Logs), logs.AnalyzePatterns(resp, a.cfg.Engine.Logs)
}

// tracesStage derives latency summaries, error propagation and the service
// dependency graph, with a bounded trace-count probe when the window is
// empty.
func (a *Analyzer) tracesStage(ctx context.Context, provider DataSource, req *models.AnalyzeRequest, traceFilters map[string]string, f fetched, warnings *[]string) ([]models.ServiceLatency, []models.ErrorPropagation, *topology.DependencyGraph) {
	tracesStarted := time.Now()
	defer func() { monitoring.RecordAnalyzerStage("traces", time.Since(tracesStarted), f.tracesErr == nil) }()

	graph := topology.NewDependencyGraph()
	if f.tracesErr != nil {
		msg := fmt.Sprintf("Traces unavailable: %v", f.tracesErr)
		*warnings = append(*warnings, msg)
		a.log.Warn(msg)
		return nil, nil, graph
	}

	resp := f.traces
	if resp == nil {
		resp = &models.TraceResponse{}
	}
	latency := traces.AnalyzeLatency(resp, req.ApdexThresholdMs, a.cfg.Engine.Traces, a.cfg.Engine.Severity)
	propagation := traces.DetectPropagation(resp, a.cfg.Engine.Traces)
	graph.FromTraces(resp.Traces)

	if len(resp.Traces) == 0 {
		*warnings = append(*warnings, "Trace query returned no traces; topology and propagation insights are limited.")
		cap := a.cfg.Engine.Analyzer.TraceCountLimit
		fallback, err := provider.QueryTraces(ctx, traceFilters, req.Start, req.End, cap+1)
		switch {
		case err != nil:
			*warnings = append(*warnings, fmt.Sprintf("Trace ID fallback count unavailable: %v", err))
		case fallback != nil && len(fallback.Traces) > cap:
			*warnings = append(*warnings, fmt.Sprintf("Trace ID fallback count: %d+ traces in selected window.", cap))
		case fallback != nil && len(fallback.Traces) > 0:
			*warnings = append(*warnings, fmt.Sprintf("Trace ID fallback count: %d traces in selected window.", len(fallback.Traces)))
		}
	}
	return latency, propagation, graph
}

// sloStage pairs the error and total series and evaluates burn-rate
// windows plus the monthly budget position.
func (a *Analyzer) sloStage(service string, req *models.AnalyzeRequest, f fetched, warnings *[]string) ([]models.SloBurnAlert, *models.BudgetStatus) {
	sloStarted := time.Now()
	ok := f.sloErrErr == nil && f.sloTotErr == nil
	defer func() { monitoring.RecordAnalyzerStage("slo", time.Since(sloStarted), ok) }()

	if !ok {
		*warnings = append(*warnings, "SLO metrics unavailable for one or both queries.")
		return nil, nil
	}

	target := req.SloTarget
	if target == 0 {
		target = a.cfg.Engine.SLO.DefaultTargetAvailability
	}

	var alerts []models.SloBurnAlert
	var budget *models.BudgetStatus
	for _, pair := range sloSeriesPairs(f.sloErr, f.sloTot, warnings) {
		alerts = append(alerts, slo.EvaluateBurn(service, pair.errVals, pair.totVals, pair.ts, target, a.cfg.Engine.SLO)...)
		if budget == nil {
			status := slo.BudgetStatus(service, pair.errVals, pair.totVals, target, a.cfg.Engine.SLO)
			budget = &status
		}
	}
	return alerts, budget
}

// causalStage selects the most variable series, runs pairwise Granger
// tests and folds the results into the tenant's persisted history.
func (a *Analyzer) causalStage(ctx context.Context, tenantID, service string, seriesMap map[string][]float64, warnings *[]string) []models.GrangerResult {
	eng := a.cfg.Engine
	names, selected := selectGrangerSeries(seriesMap, eng.Analyzer.GrangerMinSamples, eng.Analyzer.GrangerMaxSeries)

	grangerStarted := time.Now()
	var fresh []models.GrangerResult
	if len(names) >= 2 {
		fresh = causal.GrangerPairs(names, selected, eng.Causal)
	}
	elapsed := time.Since(grangerStarted)
	if elapsed > seconds(eng.Analyzer.CausalTargetSeconds) {
		*warnings = append(*warnings, fmt.Sprintf(
			"Causal granger stage exceeded target %gs (actual %.2fs).",
			eng.Analyzer.CausalTargetSeconds, elapsed.Seconds()))
	}

	persistCtx, cancel := context.WithTimeout(ctx, seconds(eng.Analyzer.GrangerPersistSeconds))
	a.granger.SaveAndMerge(persistCtx, tenantID, service, fresh)
	cancel()
	return fresh
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
