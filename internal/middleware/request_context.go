package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/expensely/internal/auditctx"
)

// RequestContext attaches client metadata used by the audit log to the request context.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auditctx.WithRequest(c.Request.Context(), auditctx.Request{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
