package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from config.yaml (optional) and BECERTAIN_*
// environment variables, layered over embedded defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/becertain")

	v.SetEnvPrefix("BECERTAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file is fine; defaults plus env carry the full surface.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyStructuredDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("default_tenant_id", "Av45ZchZsQdKjN8XyG")

	// Datasources
	v.SetDefault("datasources.logs_backend", "loki")
	v.SetDefault("datasources.loki_url", "http://loki:3100")
	v.SetDefault("datasources.loki_batch_size", 1000)
	v.SetDefault("datasources.metrics_backend", "mimir")
	v.SetDefault("datasources.mimir_url", "http://mimir:9009")
	v.SetDefault("datasources.victoriametrics_url", "")
	v.SetDefault("datasources.traces_backend", "tempo")
	v.SetDefault("datasources.tempo_url", "http://tempo:3200")
	v.SetDefault("datasources.connector_timeout", 30)
	v.SetDefault("datasources.startup_timeout", 120)

	// Tenant state store
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.baseline_ttl", 86400)
	v.SetDefault("store.granger_ttl", 604800)
	v.SetDefault("store.events_ttl", 2592000)
	v.SetDefault("store.weights_ttl", 604800)
	v.SetDefault("store.retry_cooldown_seconds", 10.0)
	v.SetDefault("store.fallback_max_items", 10000)
	v.SetDefault("store.max_events", 500)

	// Severity score cutoffs
	v.SetDefault("engine.severity.score_medium", 0.25)
	v.SetDefault("engine.severity.score_high", 0.50)
	v.SetDefault("engine.severity.score_critical", 0.75)

	// Anomaly detection
	v.SetDefault("engine.anomaly.zscore_threshold", 2.5)
	v.SetDefault("engine.anomaly.mad_threshold", 3.5)
	v.SetDefault("engine.anomaly.mad_scale", 0.6745)
	v.SetDefault("engine.anomaly.cusum_threshold", 5.0)
	v.SetDefault("engine.anomaly.cusum_k", 0.5)
	v.SetDefault("engine.anomaly.min_samples", 8)
	v.SetDefault("engine.anomaly.default_sensitivity", 3.0)
	v.SetDefault("engine.anomaly.sensitivity_factor", 0.67)
	v.SetDefault("engine.anomaly.iso_n_estimators", 100)
	v.SetDefault("engine.anomaly.iso_random_state", 42)
	v.SetDefault("engine.anomaly.iso_weight", 0.15)
	v.SetDefault("engine.anomaly.contamination_min", 0.01)
	v.SetDefault("engine.anomaly.contamination_max", 0.5)
	v.SetDefault("engine.anomaly.contamination_divisor", 0.5)
	v.SetDefault("engine.anomaly.min_sensitivity", 0.1)
	v.SetDefault("engine.anomaly.percentile_low", 5.0)
	v.SetDefault("engine.anomaly.percentile_high", 95.0)
	v.SetDefault("engine.anomaly.drift_slope_threshold", 0.1)

	// Baseline
	v.SetDefault("engine.baseline.zscore_threshold", 3.0)
	v.SetDefault("engine.baseline.min_samples", 6)
	v.SetDefault("engine.baseline.seasonal_min_samples", 24)
	v.SetDefault("engine.baseline.blend_min_samples", 20)
	v.SetDefault("engine.baseline.blend_alpha", 0.1)

	// Changepoint
	v.SetDefault("engine.changepoint.window", 10)
	v.SetDefault("engine.changepoint.cusum_k", 0.5)
	v.SetDefault("engine.changepoint.relative_cutoff", 0.5)
	v.SetDefault("engine.changepoint.threshold_sigma", 5.0)
	v.SetDefault("engine.changepoint.oscillation_density_cutoff", 0.3)

	// Logs
	v.SetDefault("engine.logs.frequency_window_seconds", 10.0)
	v.SetDefault("engine.logs.noise_regex",
		`(?i)\b(?:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`+
			`|\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?`+
			`|(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?`+
			`|\d+\.?\d*(?:ms|s|m|h|us|ns)\b`+
			`|0x[0-9a-f]+`+
			`|\b\d{4,}\b)\b`)
	v.SetDefault("engine.logs.normalized_length_cutoff", 180)
	v.SetDefault("engine.logs.sample_snippet", 300)
	v.SetDefault("engine.logs.token_cap", 500)
	v.SetDefault("engine.logs.results_limit", 100)
	v.SetDefault("engine.logs.min_duration_seconds", 1.0)

	// Traces
	v.SetDefault("engine.traces.error_rate_threshold", 0.05)
	v.SetDefault("engine.traces.error_severity_high", 0.10)
	v.SetDefault("engine.traces.error_severity_critical", 0.25)
	v.SetDefault("engine.traces.latency_p99_critical", 5000.0)
	v.SetDefault("engine.traces.latency_p99_high", 2000.0)
	v.SetDefault("engine.traces.latency_p99_medium", 500.0)
	v.SetDefault("engine.traces.latency_error_critical", 0.25)
	v.SetDefault("engine.traces.latency_error_high", 0.10)
	v.SetDefault("engine.traces.latency_error_medium", 0.02)
	v.SetDefault("engine.traces.apdex_poor", 0.5)
	v.SetDefault("engine.traces.apdex_marginal", 0.7)
	v.SetDefault("engine.traces.apdex_t_ms", 500.0)

	// SLO
	v.SetDefault("engine.slo.error_query", `sum(rate(traces_spanmetrics_calls_total{status_code="STATUS_CODE_ERROR"}[5m]))`)
	v.SetDefault("engine.slo.total_query", `sum(rate(traces_spanmetrics_calls_total[5m]))`)
	v.SetDefault("engine.slo.default_target_availability", 0.999)
	v.SetDefault("engine.slo.month_minutes", 43200.0)

	// Forecast
	v.SetDefault("engine.forecast.trajectory_min_length", 8)
	v.SetDefault("engine.forecast.trajectory_r2_threshold", 0.2)
	v.SetDefault("engine.forecast.trajectory_ratio_threshold", 0.5)
	v.SetDefault("engine.forecast.trajectory_window_seconds", 300.0)
	v.SetDefault("engine.forecast.trajectory_horizon_cutoff", 300.0)
	v.SetDefault("engine.forecast.min_window_seconds", 600.0)
	v.SetDefault("engine.forecast.min_degradation_rate", 0.01)
	v.SetDefault("engine.forecast.ema_alpha", 0.3)
	v.SetDefault("engine.forecast.degradation_threshold_critical", 0.3)
	v.SetDefault("engine.forecast.degradation_threshold_high", 0.15)
	v.SetDefault("engine.forecast.degradation_threshold_medium", 0.1)
	v.SetDefault("engine.forecast.degradation_min_length", 10)
	v.SetDefault("engine.forecast.degradation_min_window_seconds", 600.0)

	// Correlation
	v.SetDefault("engine.correlation.max_lag_seconds", 120.0)
	v.SetDefault("engine.correlation.window_seconds", 60.0)
	v.SetDefault("engine.correlation.weight_time", 0.25)
	v.SetDefault("engine.correlation.weight_latency", 0.40)
	v.SetDefault("engine.correlation.weight_errors", 0.35)
	v.SetDefault("engine.correlation.errors_cap", 0.35)
	v.SetDefault("engine.correlation.score_max", 1.0)

	// Causal
	v.SetDefault("engine.causal.granger_max_lag", 3)
	v.SetDefault("engine.causal.granger_p_threshold", 0.05)
	v.SetDefault("engine.causal.granger_strength_scale", 10.0)
	v.SetDefault("engine.causal.graph_max_depth", 5)
	v.SetDefault("engine.causal.round_precision", 4)
	v.SetDefault("engine.causal.bayesian_default_feature_prob", 0.5)

	// RCA
	v.SetDefault("engine.rca.window_seconds", 300.0)
	v.SetDefault("engine.rca.event_confidence_threshold", 0.3)
	v.SetDefault("engine.rca.deploy_window_seconds", 300.0)
	v.SetDefault("engine.rca.deploy_score_cutoff", 0.6)
	v.SetDefault("engine.rca.score_cap", 0.99)
	v.SetDefault("engine.rca.errorprop_max", 0.95)
	v.SetDefault("engine.rca.errorprop_base", 0.5)
	v.SetDefault("engine.rca.errorprop_affected_factor", 0.1)
	v.SetDefault("engine.rca.log_pattern_score", 0.6)
	v.SetDefault("engine.rca.slice_limit", 2)
	v.SetDefault("engine.rca.severity_weight_threshold", 3)
	v.SetDefault("engine.rca.min_display_confidence", 0.05)

	// Ranking
	v.SetDefault("engine.ranking.severity_divisor", 8.0)
	v.SetDefault("engine.ranking.signal_divisor", 10.0)
	v.SetDefault("engine.ranking.event_count_divisor", 5.0)
	v.SetDefault("engine.ranking.confidence_blend", 0.6)
	v.SetDefault("engine.ranking.ml_blend", 0.4)
	v.SetDefault("engine.ranking.rf_n_estimators", 50)
	v.SetDefault("engine.ranking.rf_max_depth", 4)
	v.SetDefault("engine.ranking.rf_random_state", 42)
	v.SetDefault("engine.ranking.label_threshold", 0.5)

	// Clustering
	v.SetDefault("engine.cluster.eps", 0.1)
	v.SetDefault("engine.cluster.min_samples", 2)

	// Analyzer orchestration
	v.SetDefault("engine.analyzer.fetch_timeout_seconds", 30.0)
	v.SetDefault("engine.analyzer.metrics_stage_timeout_seconds", 45.0)
	v.SetDefault("engine.analyzer.causal_target_seconds", 5.0)
	v.SetDefault("engine.analyzer.granger_persist_seconds", 1.0)
	v.SetDefault("engine.analyzer.max_parallel_metric_queries", 8)
	v.SetDefault("engine.analyzer.max_parallel_cpu_tasks", 4)
	v.SetDefault("engine.analyzer.granger_max_series", 20)
	v.SetDefault("engine.analyzer.granger_min_samples", 20)
	v.SetDefault("engine.analyzer.max_anomalies", 50)
	v.SetDefault("engine.analyzer.max_change_points", 50)
	v.SetDefault("engine.analyzer.max_root_causes", 10)
	v.SetDefault("engine.analyzer.max_clusters", 20)
	v.SetDefault("engine.analyzer.max_granger_pairs", 50)
	v.SetDefault("engine.analyzer.trace_count_limit", 10000)

	// Quality gates
	v.SetDefault("engine.quality.gating_profile", "precision_strict_v1")
	v.SetDefault("engine.quality.calibration_version", "calib_2026_02_25")
	v.SetDefault("engine.quality.density_cap_per_metric_hour", 6.0)
	v.SetDefault("engine.quality.min_corroboration_signals", 2)
	v.SetDefault("engine.quality.max_causes_without_multisignal", 1)
	v.SetDefault("engine.quality.run_compression_keep", 3)
	v.SetDefault("engine.quality.run_gap_multiplier", 2.0)
	v.SetDefault("engine.quality.iso_corroboration_factor", 0.7)
	v.SetDefault("engine.quality.precision_contamination_mult", 0.35)
	v.SetDefault("engine.quality.precision_contamination_cap", 0.10)

	// Adaptive signal weights
	v.SetDefault("engine.registry.alpha", 0.2)

	// Topology / dedup / events
	v.SetDefault("engine.topology.max_depth", 6)
	v.SetDefault("engine.dedup.time_window_seconds", 120.0)
	v.SetDefault("engine.events.window_seconds", 300.0)
}

// applyStructuredDefaults fills the list/map-shaped knobs viper cannot carry
// as flat defaults. Anything already set by file or env stays.
func applyStructuredDefaults(cfg *Config) {
	if len(cfg.Engine.Anomaly.ZScoreBands) == 0 {
		cfg.Engine.Anomaly.ZScoreBands = []ScoreBand{
			{Threshold: 4.0, Score: 0.5},
			{Threshold: 3.0, Score: 0.35},
			{Threshold: 2.5, Score: 0.2},
		}
	}
	if len(cfg.Engine.Anomaly.MADBands) == 0 {
		cfg.Engine.Anomaly.MADBands = []ScoreBand{
			{Threshold: 5.0, Score: 0.35},
			{Threshold: 3.5, Score: 0.25},
			{Threshold: 2.5, Score: 0.15},
		}
	}
	if len(cfg.Engine.Logs.BurstRatioBands) == 0 {
		cfg.Engine.Logs.BurstRatioBands = []BurstBand{
			{Ratio: 10.0, Severity: "critical"},
			{Ratio: 5.0, Severity: "high"},
			{Ratio: 2.5, Severity: "medium"},
		}
	}
	if len(cfg.Engine.SLO.BurnWindows) == 0 {
		cfg.Engine.SLO.BurnWindows = []BurnWindow{
			{Label: "1h", WindowSeconds: 3600, Threshold: 14.4, Severity: "critical"},
			{Label: "6h", WindowSeconds: 21600, Threshold: 6.0, Severity: "high"},
			{Label: "1d", WindowSeconds: 86400, Threshold: 3.0, Severity: "medium"},
			{Label: "3d", WindowSeconds: 259200, Threshold: 1.0, Severity: "low"},
		}
	}
	if len(cfg.Engine.Forecast.Thresholds) == 0 {
		cfg.Engine.Forecast.Thresholds = map[string]float64{
			"system_memory_usage_bytes":           0.85,
			"system_filesystem_usage_bytes":       0.90,
			"traces_spanmetrics_latency":          2.0,
			"traces_service_graph_request_failed": 0.05,
		}
	}
	if len(cfg.Engine.Analyzer.DefaultMetricQueries) == 0 {
		cfg.Engine.Analyzer.DefaultMetricQueries = []string{
			"sum(rate(traces_spanmetrics_calls_total[5m])) by (service)",
			"histogram_quantile(0.99, sum(rate(traces_spanmetrics_latency_bucket[5m])) by (le, service))",
			"sum(rate(traces_spanmetrics_calls_total{status_code='STATUS_CODE_ERROR'}[5m])) by (service)",
			"sum(rate(traces_service_graph_request_failed_total[5m])) by (client, server)",
			"sum(rate(traces_service_graph_request_total[5m])) by (client, server)",
			"sum(rate(system_cpu_time_seconds_total[5m])) by (cpu)",
			"system_memory_usage_bytes",
			"system_filesystem_usage_bytes",
		}
	}
	if len(cfg.Engine.RCA.Weights) == 0 {
		cfg.Engine.RCA.Weights = map[string]float64{
			"logs":    0.25,
			"latency": 0.40,
			"errors":  0.35,
		}
	}
	if len(cfg.Engine.Registry.DefaultWeights) == 0 {
		cfg.Engine.Registry.DefaultWeights = map[string]float64{
			"metrics": 0.30,
			"logs":    0.35,
			"traces":  0.35,
		}
	}
	if len(cfg.Engine.Causal.BayesianPriors) == 0 {
		cfg.Engine.Causal.BayesianPriors = map[string]float64{
			"deployment":          0.35,
			"resource_exhaustion": 0.20,
			"dependency_failure":  0.20,
			"traffic_surge":       0.10,
			"error_propagation":   0.10,
			"slo_burn":            0.03,
			"unknown":             0.02,
		}
	}
	if len(cfg.Engine.Causal.BayesianLikelihoods) == 0 {
		cfg.Engine.Causal.BayesianLikelihoods = map[string]map[string]float64{
			"deployment": {
				"has_deployment_event": 0.95,
				"has_metric_spike":     0.70,
				"has_log_burst":        0.60,
				"has_latency_spike":    0.50,
				"has_error_propagation": 0.40,
			},
			"resource_exhaustion": {
				"has_deployment_event": 0.15,
				"has_metric_spike":     0.90,
				"has_log_burst":        0.50,
				"has_latency_spike":    0.70,
				"has_error_propagation": 0.30,
			},
			"dependency_failure": {
				"has_deployment_event": 0.10,
				"has_metric_spike":     0.50,
				"has_log_burst":        0.70,
				"has_latency_spike":    0.95,
				"has_error_propagation": 0.80,
			},
			"traffic_surge": {
				"has_deployment_event": 0.05,
				"has_metric_spike":     0.95,
				"has_log_burst":        0.60,
				"has_latency_spike":    0.60,
				"has_error_propagation": 0.20,
			},
			"error_propagation": {
				"has_deployment_event": 0.10,
				"has_metric_spike":     0.60,
				"has_log_burst":        0.80,
				"has_latency_spike":    0.85,
				"has_error_propagation": 0.99,
			},
			"slo_burn": {
				"has_deployment_event": 0.20,
				"has_metric_spike":     0.80,
				"has_log_burst":        0.50,
				"has_latency_spike":    0.60,
				"has_error_propagation": 0.50,
			},
			"unknown": {
				"has_deployment_event": 0.05,
				"has_metric_spike":     0.30,
				"has_log_burst":        0.30,
				"has_latency_spike":    0.30,
				"has_error_propagation": 0.10,
			},
		}
	}
}
