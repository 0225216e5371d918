// Package middleware provides HTTP middleware for the linking API.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationKeyType is the type used for the correlation ID context key.
type CorrelationKeyType string

// CorrelationKey is the key under which the correlation ID is stored.
const CorrelationKey CorrelationKeyType = "correlation_id"

// CorrelationMiddleware tags every request with a correlation ID. Error
// responses echo the same ID so support can match a client report to the
// server-side log line without the log detail leaking to the client.
func CorrelationMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(string(CorrelationKey), correlationID)
		c.Header("X-Correlation-ID", correlationID)

		ctx := context.WithValue(c.Request.Context(), CorrelationKey, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	})
}

// GetCorrelationID extracts the correlation ID from Gin context.
func GetCorrelationID(c *gin.Context) string {
	if v, exists := c.Get(string(CorrelationKey)); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetCorrelationIDFromContext extracts the correlation ID from a standard context.
func GetCorrelationIDFromContext(ctx context.Context) string {
	if v := ctx.Value(CorrelationKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
