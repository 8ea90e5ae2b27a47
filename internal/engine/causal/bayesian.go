package causal

import (
	"sort"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Evidence is the set of binary observations feeding the posterior.
type Evidence struct {
	HasDeploymentEvent  bool
	HasMetricSpike      bool
	HasLogBurst         bool
	HasLatencySpike     bool
	HasErrorPropagation bool
}

func (e Evidence) flags() map[string]bool {
	return map[string]bool{
		"has_deployment_event":  e.HasDeploymentEvent,
		"has_metric_spike":      e.HasMetricSpike,
		"has_log_burst":         e.HasLogBurst,
		"has_latency_spike":     e.HasLatencySpike,
		"has_error_propagation": e.HasErrorPropagation,
	}
}

// ScoreCategories computes a normalized posterior over the configured RCA
// categories. Absent evidence contributes (1-p) per feature; features
// missing from a likelihood table use the default probability.
func ScoreCategories(ev Evidence, cfg config.CausalConfig) []models.BayesianScore {
	evidence := ev.flags()

	categories := make([]string, 0, len(cfg.BayesianPriors))
	for cat := range cfg.BayesianPriors {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	raw := make(map[string]float64, len(categories))
	var total float64
	for _, cat := range categories {
		prior := cfg.BayesianPriors[cat]
		likelihoods := cfg.BayesianLikelihoods[cat]
		likelihood := 1.0
		for feature, present := range evidence {
			p, ok := likelihoods[feature]
			if !ok {
				p = cfg.BayesianDefaultFeatureProb
			}
			if present {
				likelihood *= p
			} else {
				likelihood *= 1.0 - p
			}
		}
		raw[cat] = prior * likelihood
		total += raw[cat]
	}
	if total == 0 {
		total = 1.0
	}

	out := make([]models.BayesianScore, 0, len(categories))
	for _, cat := range categories {
		prior := cfg.BayesianPriors[cat]
		likelihood := 0.0
		if prior != 0 {
			likelihood = raw[cat] / prior
		}
		out = append(out, models.BayesianScore{
			Category:   models.RcaCategory(cat),
			Posterior:  stats.Round(raw[cat]/total, 4),
			Prior:      stats.Round(prior, 4),
			Likelihood: stats.Round(likelihood, 4),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Posterior > out[j].Posterior })
	return out
}
