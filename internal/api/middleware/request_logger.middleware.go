package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// RequestLogger logs HTTP requests with structured fields. Log level
// follows the response status.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		fields := []interface{}{
			"method", param.Method,
			"path", param.Path,
			"status", param.StatusCode,
			"latency", param.Latency,
			"client_ip", param.ClientIP,
			"tenant_id", tenantFromKeys(param.Keys),
			"request_id", param.Request.Header.Get("X-Request-ID"),
		}
		if param.ErrorMessage != "" {
			fields = append(fields, "error", param.ErrorMessage)
		}

		switch {
		case param.StatusCode >= 500:
			log.Error("HTTP request", fields...)
		case param.StatusCode >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
		return ""
	})
}

func tenantFromKeys(keys map[any]any) string {
	if keys == nil {
		return ""
	}
	if tenant, ok := keys[TenantKey].(string); ok {
		return tenant
	}
	return ""
}
