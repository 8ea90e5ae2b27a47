package models

import "fmt"

// AnalyzeRequest is the input to one RCA run. Validation is a boundary
// responsibility; the analyzer assumes a validated request.
type AnalyzeRequest struct {
	TenantID                 string   `json:"tenant_id"`
	Start                    int64    `json:"start" binding:"required"`
	End                      int64    `json:"end" binding:"required"`
	Step                     string   `json:"step"`
	Services                 []string `json:"services"`
	LogQuery                 string   `json:"log_query"`
	MetricQueries            []string `json:"metric_queries"`
	Sensitivity              float64  `json:"sensitivity"`
	ApdexThresholdMs         float64  `json:"apdex_threshold_ms"`
	SloTarget                float64  `json:"slo_target"`
	CorrelationWindowSeconds float64  `json:"correlation_window_seconds"`
	ForecastHorizonSeconds   float64  `json:"forecast_horizon_seconds"`
}

// ApplyDefaults fills zero-valued optional fields.
func (r *AnalyzeRequest) ApplyDefaults() {
	if r.Step == "" {
		r.Step = "15s"
	}
	if r.Sensitivity == 0 {
		r.Sensitivity = 3.0
	}
	if r.ApdexThresholdMs == 0 {
		r.ApdexThresholdMs = 500.0
	}
	if r.SloTarget == 0 {
		r.SloTarget = 0.999
	}
	if r.CorrelationWindowSeconds == 0 {
		r.CorrelationWindowSeconds = 60.0
	}
	if r.ForecastHorizonSeconds == 0 {
		r.ForecastHorizonSeconds = 1800.0
	}
}

// Validate rejects requests the engine cannot act on.
func (r *AnalyzeRequest) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if r.Start >= r.End {
		return fmt.Errorf("start must be before end (start=%d end=%d)", r.Start, r.End)
	}
	if r.Sensitivity < 1.0 || r.Sensitivity > 6.0 {
		return fmt.Errorf("sensitivity must be in [1,6], got %v", r.Sensitivity)
	}
	if r.SloTarget < 0 || r.SloTarget > 1 {
		return fmt.Errorf("slo_target must be in [0,1], got %v", r.SloTarget)
	}
	if r.CorrelationWindowSeconds < 10 || r.CorrelationWindowSeconds > 600 {
		return fmt.Errorf("correlation_window_seconds must be in [10,600], got %v", r.CorrelationWindowSeconds)
	}
	if r.ForecastHorizonSeconds < 60 || r.ForecastHorizonSeconds > 86400 {
		return fmt.Errorf("forecast_horizon_seconds must be in [60,86400], got %v", r.ForecastHorizonSeconds)
	}
	return nil
}

// WindowSeconds is the analysis window length.
func (r *AnalyzeRequest) WindowSeconds() float64 {
	return float64(r.End - r.Start)
}

// DeploymentEventRequest registers a deployment into the tenant event log.
type DeploymentEventRequest struct {
	TenantID    string            `json:"tenant_id" binding:"required"`
	Service     string            `json:"service" binding:"required"`
	Timestamp   float64           `json:"timestamp" binding:"required"`
	Version     string            `json:"version" binding:"required"`
	Author      string            `json:"author"`
	Environment string            `json:"environment"`
	Source      string            `json:"source"`
	Metadata    map[string]string `json:"metadata"`
}

// WeightFeedbackRequest reports whether a signal family contributed correctly
// to a confirmed diagnosis.
type WeightFeedbackRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	Signal     string `json:"signal" binding:"required"`
	WasCorrect bool   `json:"was_correct"`
}
