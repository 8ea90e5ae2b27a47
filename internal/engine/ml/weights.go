package ml

import (
	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// SignalWeights is the adaptive weighting over signal families. Weights stay
// non-negative and sum to 1 after every update.
type SignalWeights struct {
	Weights     map[string]float64
	Alpha       float64
	UpdateCount int
}

// NewSignalWeights starts from the configured defaults.
func NewSignalWeights(defaults map[string]float64, alpha float64) *SignalWeights {
	w := make(map[string]float64, len(defaults))
	for k, v := range defaults {
		w[k] = v
	}
	return &SignalWeights{Weights: w, Alpha: alpha}
}

func (s *SignalWeights) fallback() float64 {
	return 1.0 / float64(len(models.Signals()))
}

// Get returns the weight of a signal family.
func (s *SignalWeights) Get(signal string) float64 {
	if v, ok := s.Weights[signal]; ok {
		return v
	}
	return s.fallback()
}

// Update applies one reward observation and renormalizes.
func (s *SignalWeights) Update(signal string, wasCorrect bool) {
	reward := 0.0
	if wasCorrect {
		reward = 1.0
	}
	current := s.Get(signal)
	s.Weights[signal] = (1-s.Alpha)*current + s.Alpha*reward
	s.normalize()
	s.UpdateCount++
}

func (s *SignalWeights) normalize() {
	var total float64
	for _, v := range s.Weights {
		total += v
	}
	if total == 0 {
		total = 1
	}
	for k := range s.Weights {
		s.Weights[k] /= total
	}
}

// WeightedConfidence blends per-family scores with the current weights.
func (s *SignalWeights) WeightedConfidence(metricScore, logScore, traceScore float64) float64 {
	return stats.Round(
		s.Get(string(models.SignalMetrics))*metricScore+
			s.Get(string(models.SignalLogs))*logScore+
			s.Get(string(models.SignalTraces))*traceScore, 4)
}

// Reset restores the given defaults and clears the update counter.
func (s *SignalWeights) Reset(defaults map[string]float64) {
	w := make(map[string]float64, len(defaults))
	for k, v := range defaults {
		w[k] = v
	}
	s.Weights = w
	s.UpdateCount = 0
}

// Load replaces the weights from a persisted snapshot, coercing malformed
// entries to defaults.
func (s *SignalWeights) Load(snapshot models.TenantSignalWeights, defaults map[string]float64) {
	if len(snapshot.Weights) == 0 {
		s.Reset(defaults)
		return
	}
	w := make(map[string]float64, len(snapshot.Weights))
	for k, v := range snapshot.Weights {
		if v < 0 {
			v = defaults[k]
		}
		w[k] = v
	}
	s.Weights = w
	s.normalize()
	s.UpdateCount = snapshot.UpdateCount
	if s.UpdateCount < 0 {
		s.UpdateCount = 0
	}
}

// Snapshot returns the persistable form.
func (s *SignalWeights) Snapshot() models.TenantSignalWeights {
	w := make(map[string]float64, len(s.Weights))
	for k, v := range s.Weights {
		w[k] = v
	}
	return models.TenantSignalWeights{Weights: w, UpdateCount: s.UpdateCount}
}
