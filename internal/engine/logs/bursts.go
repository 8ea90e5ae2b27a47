// Package logs extracts volume bursts and recurring line patterns from a
// raw log query response.
package logs

import (
	"sort"
	"strconv"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

type entry struct {
	ts   float64
	line string
}

// iterEntries flattens all streams into (seconds, line) entries.
// Timestamps on the wire are nanosecond strings.
func iterEntries(resp *models.LogResponse) []entry {
	if resp == nil {
		return nil
	}
	var out []entry
	for _, stream := range resp.Data.Result {
		for _, pair := range stream.Values {
			ns, err := strconv.ParseFloat(pair[0], 64)
			if err != nil {
				continue
			}
			out = append(out, entry{ts: ns / 1e9, line: pair[1]})
		}
	}
	return out
}

// DetectBursts tiles the log timeline into fixed windows anchored at each
// uncovered entry and emits every window whose rate exceeds the baseline
// rate by a configured ratio band.
func DetectBursts(resp *models.LogResponse, cfg config.LogsConfig) []models.LogBurst {
	entries := iterEntries(resp)
	if len(entries) < 2 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts < entries[j].ts })

	windowSeconds := cfg.FrequencyWindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 10.0
	}

	totalDuration := entries[len(entries)-1].ts - entries[0].ts
	if totalDuration <= 0 {
		return nil
	}
	baselineRate := float64(len(entries)) / totalDuration

	var bursts []models.LogBurst
	for i := 0; i < len(entries); {
		wStart := entries[i].ts
		wEnd := wStart + windowSeconds
		count := 0
		for j := i; j < len(entries) && entries[j].ts < wEnd; j++ {
			count++
		}

		rate := float64(count) / windowSeconds
		ratio := 0.0
		if baselineRate > 0 {
			ratio = rate / baselineRate
		}
		if severity, ok := burstSeverity(ratio, cfg.BurstRatioBands); ok {
			bursts = append(bursts, models.LogBurst{
				WindowStart:   wStart,
				WindowEnd:     wEnd,
				RatePerSecond: stats.Round(rate, 3),
				BaselineRate:  stats.Round(baselineRate, 3),
				Ratio:         stats.Round(ratio, 2),
				Severity:      severity,
			})
		}

		if count > 0 {
			i += count
		} else {
			i++
		}
	}
	return bursts
}

func burstSeverity(ratio float64, bands []config.BurstBand) (models.Severity, bool) {
	for _, band := range bands {
		if ratio >= band.Ratio {
			return models.Severity(band.Severity), true
		}
	}
	return "", false
}
