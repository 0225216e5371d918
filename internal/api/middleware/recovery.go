package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware converts panics into sanitized 500 responses. The
// panic value and stack go to the log, never to the client.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		correlationID := GetCorrelationID(c)

		logger.Error("panic recovered",
			"correlation_id", correlationID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
			"stack", string(debug.Stack()),
		)

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": map[string]interface{}{
				"type":           "INTERNAL_ERROR",
				"code":           "INTERNAL_ERROR",
				"message":        "An internal error occurred",
				"correlation_id": correlationID,
			},
		})
		c.Abort()
	})
}
