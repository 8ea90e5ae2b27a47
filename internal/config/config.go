package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for becertain-core.
type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	Port        int    `mapstructure:"port" yaml:"port"`

	DefaultTenantID string `mapstructure:"default_tenant_id" yaml:"default_tenant_id"`

	Datasources DatasourcesConfig `mapstructure:"datasources" yaml:"datasources"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Engine      EngineConfig      `mapstructure:"engine" yaml:"engine"`
}

// DatasourcesConfig selects and addresses the telemetry backends.
type DatasourcesConfig struct {
	LogsBackend    string `mapstructure:"logs_backend" yaml:"logs_backend"`
	LokiURL        string `mapstructure:"loki_url" yaml:"loki_url"`
	LokiBatchSize  int    `mapstructure:"loki_batch_size" yaml:"loki_batch_size"`
	MetricsBackend string `mapstructure:"metrics_backend" yaml:"metrics_backend"`
	MimirURL       string `mapstructure:"mimir_url" yaml:"mimir_url"`
	VictoriaURL    string `mapstructure:"victoriametrics_url" yaml:"victoriametrics_url"`
	TracesBackend  string `mapstructure:"traces_backend" yaml:"traces_backend"`
	TempoURL       string `mapstructure:"tempo_url" yaml:"tempo_url"`

	ConnectorTimeout int `mapstructure:"connector_timeout" yaml:"connector_timeout"` // seconds
	StartupTimeout   int `mapstructure:"startup_timeout" yaml:"startup_timeout"`     // seconds
}

// StoreConfig configures the tenant state store.
type StoreConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`

	BaselineTTL int `mapstructure:"baseline_ttl" yaml:"baseline_ttl"` // seconds
	GrangerTTL  int `mapstructure:"granger_ttl" yaml:"granger_ttl"`
	EventsTTL   int `mapstructure:"events_ttl" yaml:"events_ttl"`
	WeightsTTL  int `mapstructure:"weights_ttl" yaml:"weights_ttl"`

	RetryCooldownSeconds float64 `mapstructure:"retry_cooldown_seconds" yaml:"retry_cooldown_seconds"`
	FallbackMaxItems     int     `mapstructure:"fallback_max_items" yaml:"fallback_max_items"`
	MaxEvents            int     `mapstructure:"max_events" yaml:"max_events"`
}

// EngineConfig groups every tunable of the analysis pipeline.
type EngineConfig struct {
	Anomaly     AnomalyConfig     `mapstructure:"anomaly" yaml:"anomaly"`
	Baseline    BaselineConfig    `mapstructure:"baseline" yaml:"baseline"`
	Changepoint ChangepointConfig `mapstructure:"changepoint" yaml:"changepoint"`
	Logs        LogsConfig        `mapstructure:"logs" yaml:"logs"`
	Traces      TracesConfig      `mapstructure:"traces" yaml:"traces"`
	SLO         SLOConfig         `mapstructure:"slo" yaml:"slo"`
	Forecast    ForecastConfig    `mapstructure:"forecast" yaml:"forecast"`
	Correlation CorrelationConfig `mapstructure:"correlation" yaml:"correlation"`
	Causal      CausalConfig      `mapstructure:"causal" yaml:"causal"`
	RCA         RCAConfig         `mapstructure:"rca" yaml:"rca"`
	Ranking     RankingConfig     `mapstructure:"ranking" yaml:"ranking"`
	Cluster     ClusterConfig     `mapstructure:"cluster" yaml:"cluster"`
	Analyzer    AnalyzerConfig    `mapstructure:"analyzer" yaml:"analyzer"`
	Quality     QualityConfig     `mapstructure:"quality" yaml:"quality"`
	Registry    RegistryConfig    `mapstructure:"registry" yaml:"registry"`
	Topology    TopologyConfig    `mapstructure:"topology" yaml:"topology"`
	Dedup       DedupConfig       `mapstructure:"dedup" yaml:"dedup"`
	Events      EventsConfig      `mapstructure:"events" yaml:"events"`
	Severity    SeverityConfig    `mapstructure:"severity" yaml:"severity"`
}

type SeverityConfig struct {
	ScoreMedium   float64 `mapstructure:"score_medium" yaml:"score_medium"`
	ScoreHigh     float64 `mapstructure:"score_high" yaml:"score_high"`
	ScoreCritical float64 `mapstructure:"score_critical" yaml:"score_critical"`
}

type AnomalyConfig struct {
	ZScoreThreshold      float64 `mapstructure:"zscore_threshold" yaml:"zscore_threshold"`
	MADThreshold         float64 `mapstructure:"mad_threshold" yaml:"mad_threshold"`
	MADScale             float64 `mapstructure:"mad_scale" yaml:"mad_scale"`
	CUSUMThreshold       float64 `mapstructure:"cusum_threshold" yaml:"cusum_threshold"`
	CUSUMK               float64 `mapstructure:"cusum_k" yaml:"cusum_k"`
	MinSamples           int     `mapstructure:"min_samples" yaml:"min_samples"`
	DefaultSensitivity   float64 `mapstructure:"default_sensitivity" yaml:"default_sensitivity"`
	SensitivityFactor    float64 `mapstructure:"sensitivity_factor" yaml:"sensitivity_factor"`
	IsoEstimators        int     `mapstructure:"iso_n_estimators" yaml:"iso_n_estimators"`
	IsoRandomState       int64   `mapstructure:"iso_random_state" yaml:"iso_random_state"`
	IsoWeight            float64 `mapstructure:"iso_weight" yaml:"iso_weight"`
	ContaminationMin     float64 `mapstructure:"contamination_min" yaml:"contamination_min"`
	ContaminationMax     float64 `mapstructure:"contamination_max" yaml:"contamination_max"`
	ContaminationDivisor float64 `mapstructure:"contamination_divisor" yaml:"contamination_divisor"`
	MinSensitivity       float64 `mapstructure:"min_sensitivity" yaml:"min_sensitivity"`
	PercentileLow        float64 `mapstructure:"percentile_low" yaml:"percentile_low"`
	PercentileHigh       float64 `mapstructure:"percentile_high" yaml:"percentile_high"`
	DriftSlopeThreshold  float64 `mapstructure:"drift_slope_threshold" yaml:"drift_slope_threshold"`

	// Score contributions per exceeded threshold, strongest first.
	ZScoreBands []ScoreBand `mapstructure:"zscore_bands" yaml:"zscore_bands"`
	MADBands    []ScoreBand `mapstructure:"mad_bands" yaml:"mad_bands"`
}

// ScoreBand maps a detector statistic threshold to an anomaly score component.
type ScoreBand struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	Score     float64 `mapstructure:"score" yaml:"score"`
}

type BaselineConfig struct {
	ZScoreThreshold    float64 `mapstructure:"zscore_threshold" yaml:"zscore_threshold"`
	MinSamples         int     `mapstructure:"min_samples" yaml:"min_samples"`
	SeasonalMinSamples int     `mapstructure:"seasonal_min_samples" yaml:"seasonal_min_samples"`
	BlendMinSamples    int     `mapstructure:"blend_min_samples" yaml:"blend_min_samples"`
	BlendAlpha         float64 `mapstructure:"blend_alpha" yaml:"blend_alpha"`
}

type ChangepointConfig struct {
	Window                   int     `mapstructure:"window" yaml:"window"`
	K                        float64 `mapstructure:"cusum_k" yaml:"cusum_k"`
	RelativeCutoff           float64 `mapstructure:"relative_cutoff" yaml:"relative_cutoff"`
	ThresholdSigma           float64 `mapstructure:"threshold_sigma" yaml:"threshold_sigma"`
	OscillationDensityCutoff float64 `mapstructure:"oscillation_density_cutoff" yaml:"oscillation_density_cutoff"`
}

type LogsConfig struct {
	FrequencyWindowSeconds float64     `mapstructure:"frequency_window_seconds" yaml:"frequency_window_seconds"`
	BurstRatioBands        []BurstBand `mapstructure:"burst_ratio_bands" yaml:"burst_ratio_bands"`
	NoiseRegex             string      `mapstructure:"noise_regex" yaml:"noise_regex"`
	NormalizedLengthCutoff int         `mapstructure:"normalized_length_cutoff" yaml:"normalized_length_cutoff"`
	SampleSnippet          int         `mapstructure:"sample_snippet" yaml:"sample_snippet"`
	TokenCap               int         `mapstructure:"token_cap" yaml:"token_cap"`
	ResultsLimit           int         `mapstructure:"results_limit" yaml:"results_limit"`
	MinDurationSeconds     float64     `mapstructure:"min_duration_seconds" yaml:"min_duration_seconds"`
}

// BurstBand maps a burst frequency ratio to a severity label.
type BurstBand struct {
	Ratio    float64 `mapstructure:"ratio" yaml:"ratio"`
	Severity string  `mapstructure:"severity" yaml:"severity"`
}

type TracesConfig struct {
	ErrorRateThreshold    float64 `mapstructure:"error_rate_threshold" yaml:"error_rate_threshold"`
	ErrorSeverityHigh     float64 `mapstructure:"error_severity_high" yaml:"error_severity_high"`
	ErrorSeverityCritical float64 `mapstructure:"error_severity_critical" yaml:"error_severity_critical"`

	LatencyP99Critical   float64 `mapstructure:"latency_p99_critical" yaml:"latency_p99_critical"`
	LatencyP99High       float64 `mapstructure:"latency_p99_high" yaml:"latency_p99_high"`
	LatencyP99Medium     float64 `mapstructure:"latency_p99_medium" yaml:"latency_p99_medium"`
	LatencyErrorCritical float64 `mapstructure:"latency_error_critical" yaml:"latency_error_critical"`
	LatencyErrorHigh     float64 `mapstructure:"latency_error_high" yaml:"latency_error_high"`
	LatencyErrorMedium   float64 `mapstructure:"latency_error_medium" yaml:"latency_error_medium"`
	ApdexPoor            float64 `mapstructure:"apdex_poor" yaml:"apdex_poor"`
	ApdexMarginal        float64 `mapstructure:"apdex_marginal" yaml:"apdex_marginal"`
	ApdexTMs             float64 `mapstructure:"apdex_t_ms" yaml:"apdex_t_ms"`
}

type SLOConfig struct {
	ErrorQuery                string       `mapstructure:"error_query" yaml:"error_query"`
	TotalQuery                string       `mapstructure:"total_query" yaml:"total_query"`
	DefaultTargetAvailability float64      `mapstructure:"default_target_availability" yaml:"default_target_availability"`
	MonthMinutes              float64      `mapstructure:"month_minutes" yaml:"month_minutes"`
	BurnWindows               []BurnWindow `mapstructure:"burn_windows" yaml:"burn_windows"`
}

// BurnWindow is one multi-window burn-rate alerting rule.
type BurnWindow struct {
	Label         string  `mapstructure:"label" yaml:"label"`
	WindowSeconds float64 `mapstructure:"window_seconds" yaml:"window_seconds"`
	Threshold     float64 `mapstructure:"threshold" yaml:"threshold"`
	Severity      string  `mapstructure:"severity" yaml:"severity"`
}

type ForecastConfig struct {
	Thresholds map[string]float64 `mapstructure:"thresholds" yaml:"thresholds"`

	TrajectoryMinLength      int     `mapstructure:"trajectory_min_length" yaml:"trajectory_min_length"`
	TrajectoryR2Threshold    float64 `mapstructure:"trajectory_r2_threshold" yaml:"trajectory_r2_threshold"`
	TrajectoryRatioThreshold float64 `mapstructure:"trajectory_ratio_threshold" yaml:"trajectory_ratio_threshold"`
	TrajectoryWindowSeconds  float64 `mapstructure:"trajectory_window_seconds" yaml:"trajectory_window_seconds"`
	TrajectoryHorizonCutoff  float64 `mapstructure:"trajectory_horizon_cutoff" yaml:"trajectory_horizon_cutoff"`
	MinWindowSeconds         float64 `mapstructure:"min_window_seconds" yaml:"min_window_seconds"`

	MinDegradationRate            float64 `mapstructure:"min_degradation_rate" yaml:"min_degradation_rate"`
	EMAAlpha                      float64 `mapstructure:"ema_alpha" yaml:"ema_alpha"`
	DegradationThresholdCritical  float64 `mapstructure:"degradation_threshold_critical" yaml:"degradation_threshold_critical"`
	DegradationThresholdHigh      float64 `mapstructure:"degradation_threshold_high" yaml:"degradation_threshold_high"`
	DegradationThresholdMedium    float64 `mapstructure:"degradation_threshold_medium" yaml:"degradation_threshold_medium"`
	DegradationMinLength          int     `mapstructure:"degradation_min_length" yaml:"degradation_min_length"`
	DegradationMinWindowSeconds   float64 `mapstructure:"degradation_min_window_seconds" yaml:"degradation_min_window_seconds"`
}

type CorrelationConfig struct {
	MaxLagSeconds float64 `mapstructure:"max_lag_seconds" yaml:"max_lag_seconds"`
	WindowSeconds float64 `mapstructure:"window_seconds" yaml:"window_seconds"`
	WeightTime    float64 `mapstructure:"weight_time" yaml:"weight_time"`
	WeightLatency float64 `mapstructure:"weight_latency" yaml:"weight_latency"`
	WeightErrors  float64 `mapstructure:"weight_errors" yaml:"weight_errors"`
	ErrorsCap     float64 `mapstructure:"errors_cap" yaml:"errors_cap"`
	ScoreMax      float64 `mapstructure:"score_max" yaml:"score_max"`
}

type CausalConfig struct {
	GrangerMaxLag        int     `mapstructure:"granger_max_lag" yaml:"granger_max_lag"`
	GrangerPThreshold    float64 `mapstructure:"granger_p_threshold" yaml:"granger_p_threshold"`
	GrangerStrengthScale float64 `mapstructure:"granger_strength_scale" yaml:"granger_strength_scale"`
	GraphMaxDepth        int     `mapstructure:"graph_max_depth" yaml:"graph_max_depth"`
	RoundPrecision       int     `mapstructure:"round_precision" yaml:"round_precision"`

	BayesianPriors             map[string]float64            `mapstructure:"bayesian_priors" yaml:"bayesian_priors"`
	BayesianLikelihoods        map[string]map[string]float64 `mapstructure:"bayesian_likelihoods" yaml:"bayesian_likelihoods"`
	BayesianDefaultFeatureProb float64                       `mapstructure:"bayesian_default_feature_prob" yaml:"bayesian_default_feature_prob"`
}

type RCAConfig struct {
	Weights                  map[string]float64 `mapstructure:"weights" yaml:"weights"`
	WindowSeconds            float64 `mapstructure:"window_seconds" yaml:"window_seconds"`
	EventConfidenceThreshold float64 `mapstructure:"event_confidence_threshold" yaml:"event_confidence_threshold"`
	DeployWindowSeconds      float64 `mapstructure:"deploy_window_seconds" yaml:"deploy_window_seconds"`
	DeployScoreCutoff        float64 `mapstructure:"deploy_score_cutoff" yaml:"deploy_score_cutoff"`
	ScoreCap                 float64 `mapstructure:"score_cap" yaml:"score_cap"`
	ErrorPropMax             float64 `mapstructure:"errorprop_max" yaml:"errorprop_max"`
	ErrorPropBase            float64 `mapstructure:"errorprop_base" yaml:"errorprop_base"`
	ErrorPropAffectedFactor  float64 `mapstructure:"errorprop_affected_factor" yaml:"errorprop_affected_factor"`
	LogPatternScore          float64 `mapstructure:"log_pattern_score" yaml:"log_pattern_score"`
	SliceLimit               int     `mapstructure:"slice_limit" yaml:"slice_limit"`
	SeverityWeightThreshold  int     `mapstructure:"severity_weight_threshold" yaml:"severity_weight_threshold"`
	MinDisplayConfidence     float64 `mapstructure:"min_display_confidence" yaml:"min_display_confidence"`
}

type RankingConfig struct {
	SeverityDivisor   float64 `mapstructure:"severity_divisor" yaml:"severity_divisor"`
	SignalDivisor     float64 `mapstructure:"signal_divisor" yaml:"signal_divisor"`
	EventCountDivisor float64 `mapstructure:"event_count_divisor" yaml:"event_count_divisor"`
	ConfidenceBlend   float64 `mapstructure:"confidence_blend" yaml:"confidence_blend"`
	MLBlend           float64 `mapstructure:"ml_blend" yaml:"ml_blend"`
	RFEstimators      int     `mapstructure:"rf_n_estimators" yaml:"rf_n_estimators"`
	RFMaxDepth        int     `mapstructure:"rf_max_depth" yaml:"rf_max_depth"`
	RFRandomState     int64   `mapstructure:"rf_random_state" yaml:"rf_random_state"`
	LabelThreshold    float64 `mapstructure:"label_threshold" yaml:"label_threshold"`
}

type ClusterConfig struct {
	Eps        float64 `mapstructure:"eps" yaml:"eps"`
	MinSamples int     `mapstructure:"min_samples" yaml:"min_samples"`
}

type AnalyzerConfig struct {
	FetchTimeoutSeconds        float64 `mapstructure:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	MetricsStageTimeoutSeconds float64 `mapstructure:"metrics_stage_timeout_seconds" yaml:"metrics_stage_timeout_seconds"`
	CausalTargetSeconds        float64 `mapstructure:"causal_target_seconds" yaml:"causal_target_seconds"`
	GrangerPersistSeconds      float64 `mapstructure:"granger_persist_seconds" yaml:"granger_persist_seconds"`

	MaxParallelMetricQueries int `mapstructure:"max_parallel_metric_queries" yaml:"max_parallel_metric_queries"`
	MaxParallelCPUTasks      int `mapstructure:"max_parallel_cpu_tasks" yaml:"max_parallel_cpu_tasks"`
	GrangerMaxSeries         int `mapstructure:"granger_max_series" yaml:"granger_max_series"`
	GrangerMinSamples        int `mapstructure:"granger_min_samples" yaml:"granger_min_samples"`

	MaxAnomalies    int `mapstructure:"max_anomalies" yaml:"max_anomalies"`
	MaxChangePoints int `mapstructure:"max_change_points" yaml:"max_change_points"`
	MaxRootCauses   int `mapstructure:"max_root_causes" yaml:"max_root_causes"`
	MaxClusters     int `mapstructure:"max_clusters" yaml:"max_clusters"`
	MaxGrangerPairs int `mapstructure:"max_granger_pairs" yaml:"max_granger_pairs"`

	DefaultMetricQueries []string `mapstructure:"default_metric_queries" yaml:"default_metric_queries"`
	TraceCountLimit      int      `mapstructure:"trace_count_limit" yaml:"trace_count_limit"`
}

type QualityConfig struct {
	GatingProfile              string  `mapstructure:"gating_profile" yaml:"gating_profile"`
	CalibrationVersion         string  `mapstructure:"calibration_version" yaml:"calibration_version"`
	DensityCapPerMetricHour    float64 `mapstructure:"density_cap_per_metric_hour" yaml:"density_cap_per_metric_hour"`
	MinCorroborationSignals    int     `mapstructure:"min_corroboration_signals" yaml:"min_corroboration_signals"`
	MaxCausesWithoutMultiSig   int     `mapstructure:"max_causes_without_multisignal" yaml:"max_causes_without_multisignal"`
	RunCompressionKeep         int     `mapstructure:"run_compression_keep" yaml:"run_compression_keep"`
	RunGapMultiplier           float64 `mapstructure:"run_gap_multiplier" yaml:"run_gap_multiplier"`
	IsoCorroborationFactor     float64 `mapstructure:"iso_corroboration_factor" yaml:"iso_corroboration_factor"`
	PrecisionContaminationMult float64 `mapstructure:"precision_contamination_mult" yaml:"precision_contamination_mult"`
	PrecisionContaminationCap  float64 `mapstructure:"precision_contamination_cap" yaml:"precision_contamination_cap"`
}

type RegistryConfig struct {
	Alpha          float64            `mapstructure:"alpha" yaml:"alpha"`
	DefaultWeights map[string]float64 `mapstructure:"default_weights" yaml:"default_weights"`
}

type TopologyConfig struct {
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
}

type DedupConfig struct {
	TimeWindowSeconds float64 `mapstructure:"time_window_seconds" yaml:"time_window_seconds"`
}

type EventsConfig struct {
	WindowSeconds float64 `mapstructure:"window_seconds" yaml:"window_seconds"`
}

// ConnectorTimeout returns the per-request timeout for datasource connectors.
func (d DatasourcesConfig) Timeout() time.Duration {
	return time.Duration(d.ConnectorTimeout) * time.Second
}

// Validate checks internal consistency of the loaded configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Datasources.LogsBackend {
	case "loki":
	default:
		return fmt.Errorf("unsupported logs backend: %s", c.Datasources.LogsBackend)
	}
	switch c.Datasources.MetricsBackend {
	case "mimir", "victoriametrics":
	default:
		return fmt.Errorf("unsupported metrics backend: %s", c.Datasources.MetricsBackend)
	}
	switch c.Datasources.TracesBackend {
	case "tempo":
	default:
		return fmt.Errorf("unsupported traces backend: %s", c.Datasources.TracesBackend)
	}
	if c.Datasources.MetricsBackend == "victoriametrics" && c.Datasources.VictoriaURL == "" {
		return fmt.Errorf("victoriametrics backend selected but victoriametrics_url is empty")
	}
	e := c.Engine
	if e.Anomaly.MinSamples < 2 {
		return fmt.Errorf("anomaly min_samples must be >= 2, got %d", e.Anomaly.MinSamples)
	}
	if e.Correlation.WeightTime+e.Correlation.WeightLatency+e.Correlation.WeightErrors <= 0 {
		return fmt.Errorf("correlation weights must sum to a positive value")
	}
	if e.RCA.ScoreCap <= 0 || e.RCA.ScoreCap > 1 {
		return fmt.Errorf("rca score_cap must be in (0,1], got %v", e.RCA.ScoreCap)
	}
	if e.Ranking.ConfidenceBlend+e.Ranking.MLBlend != 1.0 {
		return fmt.Errorf("ranking blend weights must sum to 1.0")
	}
	return nil
}
