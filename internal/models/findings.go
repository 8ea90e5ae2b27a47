package models

// MetricAnomaly is one flagged sample of a metric series.
type MetricAnomaly struct {
	MetricName     string     `json:"metric_name"`
	Timestamp      float64    `json:"timestamp"`
	Value          float64    `json:"value"`
	ChangeType     ChangeType `json:"change_type"`
	ZScore         float64    `json:"z_score"`
	MADScore       float64    `json:"mad_score"`
	IsolationScore float64    `json:"isolation_score"`
	ExpectedRange  [2]float64 `json:"expected_range"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
}

// ChangePoint marks a CUSUM-detected regime change in a series.
type ChangePoint struct {
	Index       int        `json:"index"`
	Timestamp   float64    `json:"timestamp"`
	ValueBefore float64    `json:"value_before"`
	ValueAfter  float64    `json:"value_after"`
	Magnitude   float64    `json:"magnitude"`
	ChangeType  ChangeType `json:"change_type"`
	MetricName  string     `json:"metric_name"`
}

// LogBurst is a sliding-window spike in log volume.
type LogBurst struct {
	WindowStart   float64  `json:"window_start"`
	WindowEnd     float64  `json:"window_end"`
	RatePerSecond float64  `json:"rate_per_second"`
	BaselineRate  float64  `json:"baseline_rate"`
	Ratio         float64  `json:"ratio"`
	Severity      Severity `json:"severity"`
}

// LogPattern is a noise-normalized recurring log shape.
type LogPattern struct {
	Pattern       string   `json:"pattern"`
	Count         int      `json:"count"`
	FirstSeen     float64  `json:"first_seen"`
	LastSeen      float64  `json:"last_seen"`
	RatePerMinute float64  `json:"rate_per_minute"`
	Entropy       float64  `json:"entropy"`
	Severity      Severity `json:"severity"`
	Sample        string   `json:"sample"`
}

// ServiceLatency summarizes trace latency for one service.
type ServiceLatency struct {
	Service     string   `json:"service"`
	Operation   string   `json:"operation"`
	P50Ms       float64  `json:"p50_ms"`
	P95Ms       float64  `json:"p95_ms"`
	P99Ms       float64  `json:"p99_ms"`
	Apdex       float64  `json:"apdex"`
	ErrorRate   float64  `json:"error_rate"`
	SampleCount int      `json:"sample_count"`
	Severity    Severity `json:"severity"`
	WindowStart *float64 `json:"window_start,omitempty"`
	WindowEnd   *float64 `json:"window_end,omitempty"`
}

// ErrorPropagation marks a service whose errors spread downstream.
type ErrorPropagation struct {
	SourceService    string   `json:"source_service"`
	AffectedServices []string `json:"affected_services"`
	ErrorRate        float64  `json:"error_rate"`
	Severity         Severity `json:"severity"`
}

// SloBurnAlert fires when the burn rate in one window exceeds its threshold.
type SloBurnAlert struct {
	Service           string   `json:"service"`
	WindowLabel       string   `json:"window_label"`
	ErrorRate         float64  `json:"error_rate"`
	BurnRate          float64  `json:"burn_rate"`
	BudgetConsumedPct float64  `json:"budget_consumed_pct"`
	Severity          Severity `json:"severity"`
}

// BudgetStatus summarizes SLO error-budget consumption over a month.
type BudgetStatus struct {
	Service             string  `json:"service"`
	TargetAvailability  float64 `json:"target_availability"`
	CurrentAvailability float64 `json:"current_availability"`
	BudgetUsedPct       float64 `json:"budget_used_pct"`
	RemainingMinutes    float64 `json:"remaining_minutes"`
	OnTrack             bool    `json:"on_track"`
}

// TrajectoryForecast predicts when a metric crosses its breach threshold.
type TrajectoryForecast struct {
	MetricName              string   `json:"metric_name"`
	CurrentValue            float64  `json:"current_value"`
	SlopePerSecond          float64  `json:"slope_per_second"`
	PredictedValueAtHorizon float64  `json:"predicted_value_at_horizon"`
	TimeToThresholdSeconds  *float64 `json:"time_to_threshold_seconds"`
	BreachThreshold         float64  `json:"breach_threshold"`
	Confidence              float64  `json:"confidence"`
	Severity                Severity `json:"severity"`
}

// DegradationSignal reports a sustained EMA-smoothed decline.
type DegradationSignal struct {
	MetricName      string   `json:"metric_name"`
	DegradationRate float64  `json:"degradation_rate"`
	Volatility      float64  `json:"volatility"`
	Trend           string   `json:"trend"`
	WindowSeconds   float64  `json:"window_seconds"`
	Severity        Severity `json:"severity"`
	IsAccelerating  bool     `json:"is_accelerating"`
}

// GrangerResult is the outcome of one directional Granger test.
type GrangerResult struct {
	CauseMetric  string  `json:"cause_metric"`
	EffectMetric string  `json:"effect_metric"`
	MaxLag       int     `json:"max_lag"`
	FStatistic   float64 `json:"f_statistic"`
	PValue       float64 `json:"p_value"`
	IsCausal     bool    `json:"is_causal"`
	Strength     float64 `json:"strength"`
}

// BayesianScore is the posterior probability of one RCA category.
type BayesianScore struct {
	Category   RcaCategory `json:"category"`
	Posterior  float64     `json:"posterior"`
	Prior      float64     `json:"prior"`
	Likelihood float64     `json:"likelihood"`
}

// AnomalyCluster groups anomalies that are close in normalized (time, value).
type AnomalyCluster struct {
	ClusterID         int             `json:"cluster_id"`
	Members           []MetricAnomaly `json:"members"`
	CentroidTimestamp float64         `json:"centroid_timestamp"`
	CentroidValue     float64         `json:"centroid_value"`
	MetricNames       []string        `json:"metric_names"`
	Size              int             `json:"size"`
	IsNoise           bool            `json:"is_noise"`
}

// CorrelatedEvent is a time-anchored bundle of cross-signal findings.
type CorrelatedEvent struct {
	WindowStart     float64          `json:"window_start"`
	WindowEnd       float64          `json:"window_end"`
	MetricAnomalies []MetricAnomaly  `json:"metric_anomalies"`
	LogBursts       []LogBurst       `json:"log_bursts"`
	ServiceLatency  []ServiceLatency `json:"service_latency"`
	SignalCount     int              `json:"signal_count"`
	Confidence      float64          `json:"confidence"`
}

// LogMetricLink pairs a log burst with a metric anomaly that follows it.
type LogMetricLink struct {
	MetricName      string  `json:"metric_name"`
	MetricTimestamp float64 `json:"metric_timestamp"`
	LogStream       string  `json:"log_stream"`
	LogBurstStart   float64 `json:"log_burst_start"`
	LagSeconds      float64 `json:"lag_seconds"`
	Strength        float64 `json:"strength"`
}

// Baseline is the persisted rolling summary of one metric.
type Baseline struct {
	Mean         float64  `json:"mean"`
	Std          float64  `json:"std"`
	Lower        float64  `json:"lower"`
	Upper        float64  `json:"upper"`
	SeasonalMean *float64 `json:"seasonal_mean,omitempty"`
	SampleCount  int      `json:"sample_count"`
}

// DeploymentEvent is one entry of the tenant deployment log.
type DeploymentEvent struct {
	Service     string            `json:"service"`
	Timestamp   float64           `json:"timestamp"`
	Version     string            `json:"version"`
	Author      string            `json:"author"`
	Environment string            `json:"environment"`
	Source      string            `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TenantSignalWeights is the persisted adaptive weighting over signal families.
type TenantSignalWeights struct {
	Weights     map[string]float64 `json:"weights"`
	UpdateCount int                `json:"update_count"`
}

// RootCause is a ranked root-cause hypothesis in its report form.
type RootCause struct {
	Hypothesis             string             `json:"hypothesis"`
	Confidence             float64            `json:"confidence"`
	Evidence               []string           `json:"evidence"`
	ContributingSignals    []Signal           `json:"contributing_signals"`
	RecommendedAction      string             `json:"recommended_action"`
	Severity               Severity           `json:"severity"`
	Category               RcaCategory        `json:"category"`
	AffectedServices       []string           `json:"affected_services,omitempty"`
	Deployment             *DeploymentEvent   `json:"deployment,omitempty"`
	CorroborationSummary   string             `json:"corroboration_summary,omitempty"`
	SuppressionDiagnostics map[string]any     `json:"suppression_diagnostics,omitempty"`
	SelectionScores        map[string]float64 `json:"selection_score_components,omitempty"`
}

// RankedCause pairs a root cause with its ML blend score.
type RankedCause struct {
	RootCause         RootCause          `json:"root_cause"`
	MLScore           float64            `json:"ml_score"`
	FinalScore        float64            `json:"final_score"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// AnalysisQuality describes the effect of the precision gates on a report.
type AnalysisQuality struct {
	AnomalyDensity               map[string]float64 `json:"anomaly_density"`
	SuppressionCounts            map[string]int     `json:"suppression_counts"`
	GatingProfile                string             `json:"gating_profile"`
	ConfidenceCalibrationVersion string             `json:"confidence_calibration_version"`
}

// AnalysisReport is the complete output of one RCA run.
type AnalysisReport struct {
	TenantID        string `json:"tenant_id"`
	Start           int64  `json:"start"`
	End             int64  `json:"end"`
	DurationSeconds int64  `json:"duration_seconds"`

	MetricAnomalies    []MetricAnomaly      `json:"metric_anomalies"`
	LogBursts          []LogBurst           `json:"log_bursts"`
	LogPatterns        []LogPattern         `json:"log_patterns"`
	ServiceLatency     []ServiceLatency     `json:"service_latency"`
	ErrorPropagation   []ErrorPropagation   `json:"error_propagation"`
	SloAlerts          []SloBurnAlert       `json:"slo_alerts"`
	BudgetStatus       *BudgetStatus        `json:"budget_status,omitempty"`
	RootCauses         []RootCause          `json:"root_causes"`
	RankedCauses       []RankedCause        `json:"ranked_causes"`
	ChangePoints       []ChangePoint        `json:"change_points"`
	LogMetricLinks     []LogMetricLink      `json:"log_metric_links"`
	Forecasts          []TrajectoryForecast `json:"forecasts"`
	DegradationSignals []DegradationSignal  `json:"degradation_signals"`
	AnomalyClusters    []AnomalyCluster     `json:"anomaly_clusters"`
	GrangerResults     []GrangerResult      `json:"granger_results"`
	BayesianScores     []BayesianScore      `json:"bayesian_scores"`

	AnalysisWarnings []string         `json:"analysis_warnings"`
	OverallSeverity  Severity         `json:"overall_severity"`
	Summary          string           `json:"summary"`
	Quality          *AnalysisQuality `json:"quality"`
}
