package middleware

import (
	"github.com/gin-gonic/gin"
)

// TenantKey is the gin context key carrying the resolved tenant id.
const TenantKey = "tenant_id"

// TenantHeader is the multi-tenancy header shared with the observability
// backends.
const TenantHeader = "X-Scope-OrgID"

// TenantResolver stores the request's tenant id on the context. The header
// wins; otherwise the configured default applies.
func TenantResolver(defaultTenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(TenantHeader)
		if tenant == "" {
			tenant = defaultTenantID
		}
		c.Set(TenantKey, tenant)
		c.Next()
	}
}

// TenantID returns the tenant resolved for this request.
func TenantID(c *gin.Context) string {
	return c.GetString(TenantKey)
}
