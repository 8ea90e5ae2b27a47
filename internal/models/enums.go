package models

// Severity classifies findings for triage. Serialized lowercase.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFromScore maps a score in [0,1] to a Severity using the given
// cutoffs for medium, high and critical.
func SeverityFromScore(score, medium, high, critical float64) Severity {
	switch {
	case score >= critical:
		return SeverityCritical
	case score >= high:
		return SeverityHigh
	case score >= medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Weight returns the comparison weight of a severity (low=1 .. critical=8).
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 8
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// MaxSeverity returns the higher-weighted of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Weight() > a.Weight() {
		return b
	}
	return a
}

// Signal is a source family for evidence.
type Signal string

const (
	SignalMetrics Signal = "metrics"
	SignalLogs    Signal = "logs"
	SignalTraces  Signal = "traces"
	SignalEvents  Signal = "events"
)

// Signals lists every valid signal family.
func Signals() []Signal {
	return []Signal{SignalMetrics, SignalLogs, SignalTraces, SignalEvents}
}

// ChangeType classifies the shape of a metric regime change.
type ChangeType string

const (
	ChangeSpike       ChangeType = "spike"
	ChangeDrop        ChangeType = "drop"
	ChangeDrift       ChangeType = "drift"
	ChangeShift       ChangeType = "shift"
	ChangeOscillation ChangeType = "oscillation"
)

// RcaCategory classifies a root-cause hypothesis.
type RcaCategory string

const (
	CategoryDeployment         RcaCategory = "deployment"
	CategoryResourceExhaustion RcaCategory = "resource_exhaustion"
	CategoryDependencyFailure  RcaCategory = "dependency_failure"
	CategoryTrafficSurge       RcaCategory = "traffic_surge"
	CategoryErrorPropagation   RcaCategory = "error_propagation"
	CategorySloBurn            RcaCategory = "slo_burn"
	CategoryUnknown            RcaCategory = "unknown"
)
