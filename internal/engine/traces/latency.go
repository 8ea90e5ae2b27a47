// Package traces classifies trace search results into per-service latency
// summaries and error propagation findings.
package traces

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

type latencyBucket struct {
	service     string
	operation   string
	durations   []float64
	errors      int
	total       int
	windowStart *float64
	windowEnd   *float64
}

// AnalyzeLatency buckets traces by root service and operation and scores
// each bucket by p99, error rate and Apdex. Low-severity buckets are
// dropped. apdexTMs <= 0 falls back to the configured target.
func AnalyzeLatency(resp *models.TraceResponse, apdexTMs float64, cfg config.TracesConfig, sev config.SeverityConfig) []models.ServiceLatency {
	if resp == nil {
		return nil
	}
	if apdexTMs <= 0 {
		apdexTMs = cfg.ApdexTMs
	}

	buckets := map[string]*latencyBucket{}
	var order []string

	for _, trace := range resp.Traces {
		service := trace.RootServiceName
		if service == "" {
			service = "unknown"
		}
		operation := trace.RootTraceName
		if operation == "" {
			operation = "unknown"
		}

		key := service + "::" + operation
		b, ok := buckets[key]
		if !ok {
			b = &latencyBucket{service: service, operation: operation}
			buckets[key] = b
			order = append(order, key)
		}
		b.durations = append(b.durations, trace.DurationMs)
		b.total++
		if traceHasError(trace) {
			b.errors++
		}

		start, end := traceWindow(trace)
		if start != nil {
			if b.windowStart == nil || *start < *b.windowStart {
				b.windowStart = start
			}
		}
		if end != nil {
			if b.windowEnd == nil || *end > *b.windowEnd {
				b.windowEnd = end
			}
		}
	}

	var out []models.ServiceLatency
	for _, key := range order {
		b := buckets[key]
		if len(b.durations) == 0 {
			continue
		}

		p99 := stats.Percentile(b.durations, 99)
		errorRate := float64(b.errors) / float64(b.total)
		apdex := apdexScore(b.durations, apdexTMs)
		severity := latencySeverity(p99, errorRate, apdex, cfg, sev)
		if severity == models.SeverityLow {
			continue
		}

		out = append(out, models.ServiceLatency{
			Service:     b.service,
			Operation:   b.operation,
			P50Ms:       stats.Round(stats.Percentile(b.durations, 50), 2),
			P95Ms:       stats.Round(stats.Percentile(b.durations, 95), 2),
			P99Ms:       stats.Round(p99, 2),
			Apdex:       apdex,
			ErrorRate:   stats.Round(errorRate, 4),
			SampleCount: b.total,
			Severity:    severity,
			WindowStart: roundPtr(b.windowStart),
			WindowEnd:   roundPtr(b.windowEnd),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Weight() > out[j].Severity.Weight()
	})
	return out
}

func apdexScore(durationsMs []float64, tMs float64) float64 {
	if len(durationsMs) == 0 {
		return 1.0
	}
	satisfied, tolerating := 0, 0
	for _, d := range durationsMs {
		switch {
		case d <= tMs:
			satisfied++
		case d <= 4*tMs:
			tolerating++
		}
	}
	return stats.Round((float64(satisfied)+0.5*float64(tolerating))/float64(len(durationsMs)), 4)
}

func latencySeverity(p99, errorRate, apdex float64, cfg config.TracesConfig, sev config.SeverityConfig) models.Severity {
	score := 0.0
	switch {
	case p99 >= cfg.LatencyP99Critical:
		score += 0.5
	case p99 >= cfg.LatencyP99High:
		score += 0.35
	case p99 >= cfg.LatencyP99Medium:
		score += 0.2
	}
	switch {
	case errorRate >= cfg.LatencyErrorCritical:
		score += 0.4
	case errorRate >= cfg.LatencyErrorHigh:
		score += 0.25
	case errorRate >= cfg.LatencyErrorMedium:
		score += 0.1
	}
	switch {
	case apdex < cfg.ApdexPoor:
		score += 0.1
	case apdex < cfg.ApdexMarginal:
		score += 0.05
	}
	return models.SeverityFromScore(math.Min(score, 1.0), sev.ScoreMedium, sev.ScoreHigh, sev.ScoreCritical)
}

func traceHasError(trace models.Trace) bool {
	for _, span := range trace.AllSpans() {
		if code, ok := span.Attribute("status.code"); ok {
			switch strings.ToUpper(code) {
			case "STATUS_CODE_ERROR", "ERROR":
				return true
			}
		}
	}
	return false
}

// traceWindow derives the [start, end] seconds of a trace from its nano
// timestamps, filling the missing side with durationMs when only one is
// present.
func traceWindow(trace models.Trace) (*float64, *float64) {
	start := toSeconds(trace.StartTimeUnixNano)
	end := toSeconds(trace.EndTimeUnixNano)

	if start != nil && end == nil && trace.DurationMs >= 0 {
		v := *start + trace.DurationMs/1000.0
		end = &v
	}
	if start == nil && end != nil && trace.DurationMs >= 0 {
		v := *end - trace.DurationMs/1000.0
		start = &v
	}
	if start != nil && end != nil && *end < *start {
		start, end = end, start
	}
	return start, end
}

// toSeconds parses a timestamp string and scales unix epochs encoded in
// ns, us or ms down to seconds.
func toSeconds(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	switch {
	case v > 1e17:
		v /= 1e9
	case v > 1e14:
		v /= 1e6
	case v > 1e11:
		v /= 1e3
	}
	return &v
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := stats.Round(*v, 6)
	return &r
}
