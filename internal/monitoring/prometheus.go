// Package monitoring provides Prometheus metrics for becertain-core.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Add HTTP metrics middleware:
//     router.Use(monitoring.HTTPMetricsMiddleware())
//
//  3. Record custom metrics from the engine:
//
//	start := time.Now()
//	// ... stage work ...
//	monitoring.RecordAnalyzerStage("metrics", time.Since(start), true)
//	monitoring.RecordFetch("loki", "logs", time.Since(start), true)
//	monitoring.RecordStoreOperation("get", "hit")
//
// Available Metrics:
//
// HTTP Metrics:
//   - becertain_core_http_requests_total{method, endpoint, status_code, tenant_id}
//   - becertain_core_http_request_duration_seconds{method, endpoint, tenant_id}
//   - becertain_core_active_connections
//
// Analyzer Metrics:
//   - becertain_core_analyzer_stage_duration_seconds{stage}
//   - becertain_core_analyzer_stage_total{stage, status}
//   - becertain_core_analyses_total{tenant_id, severity}
//   - becertain_core_suppressed_findings_total{reason}
//
// Datasource Metrics:
//   - becertain_core_fetch_total{backend, signal, status}
//   - becertain_core_fetch_duration_seconds{backend, signal}
//
// Store Metrics:
//   - becertain_core_store_operations_total{operation, result}
//
// Error Metrics:
//   - becertain_core_errors_total{type, component}
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "tenant_id"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "becertain_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "tenant_id"},
	)

	// Analyzer pipeline metrics
	analyzerStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "becertain_core_analyzer_stage_duration_seconds",
			Help:    "Analyzer pipeline stage duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	analyzerStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_analyzer_stage_total",
			Help: "Total number of analyzer stage executions",
		},
		[]string{"stage", "status"}, // status: success, degraded, timeout
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_analyses_total",
			Help: "Total number of completed analyses",
		},
		[]string{"tenant_id", "severity"},
	)

	suppressedFindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_suppressed_findings_total",
			Help: "Total number of findings suppressed by quality gates",
		},
		[]string{"reason"},
	)

	// Datasource fetch metrics
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_fetch_total",
			Help: "Total number of datasource fetches",
		},
		[]string{"backend", "signal", "status"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "becertain_core_fetch_duration_seconds",
			Help:    "Datasource fetch duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"backend", "signal"},
	)

	// Tenant state store metrics
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_store_operations_total",
			Help: "Total number of tenant state store operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, success, error
	)

	// Active connections gauge
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "becertain_core_active_connections",
			Help: "Number of active connections",
		},
	)

	// Error rate metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "becertain_core_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// SetupPrometheusMetrics registers the metric vectors and exposes /metrics.
func SetupPrometheusMetrics(router gin.IRoutes) {
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "becertain_core_build_info",
		Help: "Build information for becertain-core",
		ConstLabels: prometheus.Labels{
			"version":   "v1.0.0",
			"component": "becertain-core",
		},
	}, func() float64 { return 1 }))

	// Ignore AlreadyRegistered from repeated setup in tests.
	_ = prometheus.Register(httpRequestsTotal)
	_ = prometheus.Register(httpRequestDuration)
	_ = prometheus.Register(analyzerStageDuration)
	_ = prometheus.Register(analyzerStageTotal)
	_ = prometheus.Register(analysesTotal)
	_ = prometheus.Register(suppressedFindingsTotal)
	_ = prometheus.Register(fetchTotal)
	_ = prometheus.Register(fetchDuration)
	_ = prometheus.Register(storeOperationsTotal)
	_ = prometheus.Register(activeConnections)
	_ = prometheus.Register(errorsTotal)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		tenantID := c.GetString("tenant_id")
		if tenantID == "" {
			tenantID = "unknown"
		}

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, tenantID).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint, tenantID).Observe(duration)

		if c.Writer.Status() >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordAnalyzerStage records one pipeline stage execution.
func RecordAnalyzerStage(stage string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "degraded"
		errorsTotal.WithLabelValues("analyzer", stage).Inc()
	}
	analyzerStageTotal.WithLabelValues(stage, status).Inc()
	analyzerStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAnalysis records one completed analysis by tenant and rolled-up severity.
func RecordAnalysis(tenantID, severity string) {
	analysesTotal.WithLabelValues(tenantID, severity).Inc()
}

// RecordSuppression records findings dropped by the precision quality gates.
func RecordSuppression(reason string, count int) {
	if count <= 0 {
		return
	}
	suppressedFindingsTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordFetch records a datasource fetch outcome.
func RecordFetch(backend, signal string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("fetch", backend).Inc()
	}
	fetchTotal.WithLabelValues(backend, signal, status).Inc()
	fetchDuration.WithLabelValues(backend, signal).Observe(duration.Seconds())
}

// RecordStoreOperation records a tenant state store operation outcome.
func RecordStoreOperation(operation, result string) {
	storeOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("store", operation).Inc()
	}
}
