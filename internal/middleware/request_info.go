package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/services"
)

// RequestInfo tags the request context with its origin so setup audit rows
// carry the caller's IP.
func RequestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := services.WithRequestInfo(c.Request.Context(), services.SourceHTTP, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
