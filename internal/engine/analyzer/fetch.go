package analyzer

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/becertain-core/internal/engine/anomaly"
	"github.com/platformbuilds/becertain-core/internal/engine/changepoint"
	"github.com/platformbuilds/becertain-core/internal/engine/forecast"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

var (
	matchAllRe   = regexp.MustCompile(`=~"\.\*"`)
	metricNameRe = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*`)
)

// buildLogQuery derives the LogQL selector for the run. An explicit query
// wins, with the pathological match-all regex upgraded to match-nonempty.
func buildLogQuery(services []string, explicit string) string {
	if explicit != "" {
		return matchAllRe.ReplaceAllString(explicit, `=~".+"`)
	}
	if len(services) > 0 {
		escaped := make([]string, 0, len(services))
		for _, svc := range services {
			escaped = append(escaped, regexp.QuoteMeta(svc))
		}
		return fmt.Sprintf(`{service_name=~"%s"}`, strings.Join(escaped, "|"))
	}
	return `{service_name=~".+"}`
}

// fallbackLogSelectors lists progressively looser selectors tried when the
// primary query matched nothing. The primary itself and duplicates are
// skipped.
func fallbackLogSelectors(services []string, primary string) []string {
	var candidates []string
	if len(services) > 0 {
		escaped := make([]string, 0, len(services))
		for _, svc := range services {
			escaped = append(escaped, regexp.QuoteMeta(svc))
		}
		pattern := strings.Join(escaped, "|")
		candidates = append(candidates,
			fmt.Sprintf(`{service_name=~"%s"}`, pattern),
			fmt.Sprintf(`{service=~"%s"}`, pattern),
		)
	}
	candidates = append(candidates,
		`{service_name=~".+"}`,
		`{service=~".+"}`,
		`{}`,
	)

	seen := map[string]bool{primary: true}
	var out []string
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		out = append(out, candidate)
	}
	return out
}

// uniqueQueries merges caller queries with the configured defaults,
// preserving order and dropping duplicates.
func uniqueQueries(requested, defaults []string) []string {
	source := requested
	if len(source) == 0 {
		source = defaults
	}
	seen := map[string]bool{}
	var out []string
	for _, q := range source {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

// queryResult is one fetched metric response, in query order.
type queryResult struct {
	query string
	resp  *models.MetricResponse
}

// processMetrics fetches every metric query in parallel, then runs the
// per-series detectors under a CPU concurrency bound. Failed queries are
// logged and skipped. Returns the detections plus the finite value series
// keyed "query::label" for the causal stage.
func (a *Analyzer) processMetrics(ctx context.Context, provider DataSource, req *models.AnalyzeRequest, queries []string, zThreshold, windowSeconds float64) ([]models.MetricAnomaly, []models.ChangePoint, []models.TrajectoryForecast, []models.DegradationSignal, map[string][]float64) {
	eng := a.cfg.Engine
	results := make([]queryResult, len(queries))

	g, fetchCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(eng.Analyzer.MaxParallelMetricQueries, 1))
	for i, query := range queries {
		g.Go(func() error {
			resp, err := provider.QueryMetrics(fetchCtx, query, req.Start, req.End, req.Step)
			if err != nil {
				a.log.Warn("metric query failed", "query", query, "error", err)
				return nil
			}
			results[i] = queryResult{query: query, resp: resp}
			return nil
		})
	}
	g.Wait()

	results = a.scrapeAndFill(ctx, provider, req, results)

	sigmaMultiplier := eng.Changepoint.ThresholdSigma
	if req.Sensitivity > 0 {
		sigmaMultiplier = math.Max(1.0, zThreshold)
	}

	var (
		mu           sync.Mutex
		anomalies    []models.MetricAnomaly
		changePoints []models.ChangePoint
		forecasts    []models.TrajectoryForecast
		degradations []models.DegradationSignal
		seriesMap    = map[string][]float64{}
	)

	cpu, _ := errgroup.WithContext(ctx)
	cpu.SetLimit(maxInt(eng.Analyzer.MaxParallelCPUTasks, 1))
	for _, result := range results {
		if result.resp == nil {
			continue
		}
		query := result.query
		breachThreshold, hasForecast := forecastThreshold(query, eng.Forecast.Thresholds)
		for _, series := range anomaly.IterSeries(result.resp) {
			cpu.Go(func() error {
				// The stage deadline bounds the compute half too; expiry
				// surfaces as the stage timeout warning in the caller.
				if ctx.Err() != nil {
					return nil
				}
				ts, vals := stats.Finite(series.Timestamps, series.Values)

				found := anomaly.Detect(series.Label, series.Timestamps, series.Values,
					req.Sensitivity, eng.Anomaly, eng.Severity, eng.Quality)
				a.baselines.ComputeAndPersist(ctx, req.TenantID, series.Label, ts, vals, zThreshold)
				points := changepoint.Detect(series.Label, ts, vals, sigmaMultiplier, eng.Changepoint)

				var fc *models.TrajectoryForecast
				if hasForecast && windowSeconds >= eng.Forecast.MinWindowSeconds {
					fc = forecast.Trajectory(series.Label, ts, vals,
						breachThreshold, req.ForecastHorizonSeconds, eng.Forecast)
				}
				var deg *models.DegradationSignal
				if windowSeconds >= eng.Forecast.DegradationMinWindowSeconds {
					deg = forecast.Degradation(series.Label, ts, vals,
						eng.Forecast.MinDegradationRate, eng.Forecast)
				}

				mu.Lock()
				anomalies = append(anomalies, found...)
				changePoints = append(changePoints, points...)
				if fc != nil {
					forecasts = append(forecasts, *fc)
				}
				if deg != nil {
					degradations = append(degradations, *deg)
				}
				if len(vals) > 0 {
					seriesMap[query+"::"+series.Label] = vals
				}
				mu.Unlock()
				return nil
			})
		}
	}
	cpu.Wait()

	return anomalies, changePoints, forecasts, degradations, seriesMap
}

// scrapeAndFill replaces an all-empty query batch with flat series
// synthesized from a raw exposition scrape, when the backend offers one.
// A query whose first extracted metric name appears in the scrape gets a
// constant two-point series across the window.
func (a *Analyzer) scrapeAndFill(ctx context.Context, provider DataSource, req *models.AnalyzeRequest, results []queryResult) []queryResult {
	anyFetched := false
	anySeries := false
	for _, r := range results {
		if r.resp == nil {
			continue
		}
		anyFetched = true
		if len(r.resp.Data.Result) > 0 {
			anySeries = true
			break
		}
	}
	if !anyFetched || anySeries {
		return results
	}

	scraper, ok := provider.(Scraper)
	if !ok {
		return results
	}
	text, err := scraper.Scrape(ctx)
	if err != nil {
		a.log.Warn("exposition scrape fallback failed", "error", err)
		return results
	}

	values := parseExposition(text)
	if len(values) == 0 {
		return results
	}
	a.log.Info("using exposition scrape fallback for empty metric range responses",
		"scraped_metrics", len(values))

	for i, r := range results {
		if r.resp == nil {
			continue
		}
		name := metricNameRe.FindString(strings.TrimSpace(r.query))
		value, present := values[name]
		if name == "" || !present {
			continue
		}
		results[i].resp = &models.MetricResponse{
			Status: "success",
			Data: models.MetricData{
				Result: []models.MetricSeries{{
					Metric: map[string]string{"__name__": name},
					Values: []models.MetricSample{
						{Timestamp: float64(req.Start), Value: formatFloat(value)},
						{Timestamp: float64(req.End), Value: formatFloat(value)},
					},
				}},
			},
		}
	}
	return results
}

// parseExposition extracts metric-name to first-value from Prometheus
// exposition text, skipping comments and unparsable lines.
func parseExposition(text string) map[string]float64 {
	out := map[string]float64{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		if brace := strings.Index(name, "{"); brace >= 0 {
			name = name[:brace]
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		if _, exists := out[name]; !exists {
			out[name] = value
		}
	}
	return out
}

// forecastThreshold finds the breach threshold whose key is a substring of
// the query. Keys are checked in sorted order so matches are stable.
func forecastThreshold(query string, thresholds map[string]float64) (float64, bool) {
	keys := make([]string, 0, len(thresholds))
	for key := range thresholds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.Contains(query, key) {
			return thresholds[key], true
		}
	}
	return 0, false
}

// selectGrangerSeries picks the most variable series for pairwise causal
// testing. Series need enough finite samples and nonzero variance.
func selectGrangerSeries(seriesMap map[string][]float64, minSamples, maxSeries int) ([]string, map[string][]float64) {
	type candidate struct {
		name     string
		variance float64
	}
	var candidates []candidate
	for name, vals := range seriesMap {
		finite := make([]float64, 0, len(vals))
		for _, v := range vals {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
		if len(finite) < minSamples {
			continue
		}
		variance := stats.Variance(finite)
		if variance <= 0 {
			continue
		}
		candidates = append(candidates, candidate{name: name, variance: variance})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].variance != candidates[j].variance {
			return candidates[i].variance > candidates[j].variance
		}
		return candidates[i].name < candidates[j].name
	})
	if maxSeries > 0 && len(candidates) > maxSeries {
		candidates = candidates[:maxSeries]
	}

	names := make([]string, 0, len(candidates))
	selected := make(map[string][]float64, len(candidates))
	for _, c := range candidates {
		names = append(names, c.name)
		selected[c.name] = seriesMap[c.name]
	}
	return names, selected
}

// sloPair is one aligned (error, total) series pair.
type sloPair struct {
	errVals []float64
	totVals []float64
	ts      []float64
}

// sloSeriesPairs zips error and total responses positionally, trimming to
// the shorter series and warning on count or length mismatches.
func sloSeriesPairs(errResp, totResp *models.MetricResponse, warnings *[]string) []sloPair {
	errSeries := anomaly.IterSeries(errResp)
	totSeries := anomaly.IterSeries(totResp)
	if len(errSeries) == 0 || len(totSeries) == 0 {
		return nil
	}
	if len(errSeries) != len(totSeries) {
		*warnings = append(*warnings, fmt.Sprintf(
			"SLO error/total series count mismatch (%d vs %d); pairing positionally.",
			len(errSeries), len(totSeries)))
	}

	n := minInt(len(errSeries), len(totSeries))
	pairs := make([]sloPair, 0, n)
	for i := 0; i < n; i++ {
		errTs, errVals := stats.Finite(errSeries[i].Timestamps, errSeries[i].Values)
		_, totVals := stats.Finite(totSeries[i].Timestamps, totSeries[i].Values)
		if len(errVals) != len(totVals) {
			*warnings = append(*warnings, fmt.Sprintf(
				"SLO series length mismatch for pair %d (%d vs %d); trimming to the shorter.",
				i, len(errVals), len(totVals)))
			m := minInt(len(errVals), len(totVals))
			errTs, errVals, totVals = errTs[:m], errVals[:m], totVals[:m]
		}
		if len(errVals) == 0 {
			continue
		}
		pairs = append(pairs, sloPair{errVals: errVals, totVals: totVals, ts: errTs})
	}
	return pairs
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
