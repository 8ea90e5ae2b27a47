package logs

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	severityRes = []struct {
		severity models.Severity
		re       *regexp.Regexp
	}{
		{models.SeverityCritical, regexp.MustCompile(`(?i)\b(fatal|panic|oom|killed|segfault|out of memory)\b`)},
		{models.SeverityHigh, regexp.MustCompile(`(?i)\b(error|err|exception|failed|failure|crash|timeout|unavailable|refused)\b`)},
		{models.SeverityMedium, regexp.MustCompile(`(?i)\b(warn|warning|slow|retry|retrying|degraded|circuit)\b`)},
	}
)

type patternBucket struct {
	count    int
	first    float64
	last     float64
	severity models.Severity
	sample   string
	tokens   []string
}

// AnalyzePatterns buckets lines by their noise-normalized shape and ranks
// the buckets by severity weight then volume.
func AnalyzePatterns(resp *models.LogResponse, cfg config.LogsConfig) []models.LogPattern {
	noiseRe, err := regexp.Compile(cfg.NoiseRegex)
	if err != nil {
		noiseRe = regexp.MustCompile(`[0-9a-f]{8,}`)
	}

	buckets := map[string]*patternBucket{}
	var order []string

	for _, e := range iterEntries(resp) {
		key := normalize(e.line, noiseRe, cfg.NormalizedLengthCutoff)
		b, ok := buckets[key]
		if !ok {
			b = &patternBucket{first: math.Inf(1), last: math.Inf(-1), severity: models.SeverityLow}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		b.first = math.Min(b.first, e.ts)
		b.last = math.Max(b.last, e.ts)
		if b.sample == "" {
			b.sample = truncate(e.line, cfg.SampleSnippet)
		}
		if sev := classifyLine(e.line); sev.Weight() > b.severity.Weight() {
			b.severity = sev
		}
		if len(b.tokens) < cfg.TokenCap {
			b.tokens = append(b.tokens, strings.Fields(key)...)
		}
	}

	results := make([]models.LogPattern, 0, len(buckets))
	for _, key := range order {
		b := buckets[key]
		if math.IsInf(b.first, 1) {
			continue
		}
		duration := math.Max(b.last-b.first, cfg.MinDurationSeconds)
		results = append(results, models.LogPattern{
			Pattern:       key,
			Count:         b.count,
			FirstSeen:     b.first,
			LastSeen:      b.last,
			RatePerMinute: stats.Round(float64(b.count)/(duration/60), 4),
			Entropy:       stats.Round(tokenEntropy(b.tokens), 4),
			Severity:      b.severity,
			Sample:        b.sample,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		wi, wj := results[i].Severity.Weight(), results[j].Severity.Weight()
		if wi != wj {
			return wi > wj
		}
		return results[i].Count > results[j].Count
	})
	if cfg.ResultsLimit > 0 && len(results) > cfg.ResultsLimit {
		results = results[:cfg.ResultsLimit]
	}
	return results
}

func normalize(line string, noiseRe *regexp.Regexp, maxLen int) string {
	out := noiseRe.ReplaceAllString(line, "<_>")
	out = strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
	return truncate(out, maxLen)
}

func classifyLine(line string) models.Severity {
	for _, entry := range severityRes {
		if entry.re.MatchString(line) {
			return entry.severity
		}
	}
	return models.SeverityLow
}

func tokenEntropy(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, tok := range tokens {
		counts[tok]++
	}
	total := float64(len(tokens))
	var h float64
	for _, c := range counts {
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

func truncate(s string, maxLen int) string {
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
