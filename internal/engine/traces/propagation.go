package traces

import (
	"sort"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// DetectPropagation finds services whose per-trace error rate clears the
// source threshold and pairs each with every other erroring service,
// sorted by error rate.
func DetectPropagation(resp *models.TraceResponse, cfg config.TracesConfig) []models.ErrorPropagation {
	if resp == nil {
		return nil
	}

	errors := map[string]int{}
	totals := map[string]int{}
	for _, trace := range resp.Traces {
		service := trace.RootServiceName
		if service == "" {
			service = "unknown"
		}
		totals[service]++
		if traceHasError(trace) {
			errors[service]++
		}
	}

	rates := map[string]float64{}
	var erroring []string
	for service, total := range totals {
		if total == 0 {
			continue
		}
		rate := float64(errors[service]) / float64(total)
		rates[service] = rate
		if rate > 0 {
			erroring = append(erroring, service)
		}
	}
	sort.Strings(erroring)

	var out []models.ErrorPropagation
	for _, source := range erroring {
		rate := rates[source]
		if rate < cfg.ErrorRateThreshold {
			continue
		}

		var affected []string
		for _, svc := range erroring {
			if svc != source {
				affected = append(affected, svc)
			}
		}
		if len(affected) == 0 {
			continue
		}

		severity := models.SeverityMedium
		switch {
		case rate >= cfg.ErrorSeverityCritical:
			severity = models.SeverityCritical
		case rate >= cfg.ErrorSeverityHigh:
			severity = models.SeverityHigh
		}

		out = append(out, models.ErrorPropagation{
			SourceService:    source,
			AffectedServices: affected,
			ErrorRate:        stats.Round(rate, 4),
			Severity:         severity,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ErrorRate > out[j].ErrorRate })
	return out
}
