// Package api provides the HTTP surface of the linking engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"finlink/internal/domain"
)

// ErrorSanitizer maps domain errors to safe HTTP responses. Internal
// detail (storage errors, provider causes) is logged with a correlation
// id and never returned to the caller.
type ErrorSanitizer struct {
	logger *slog.Logger
}

// NewErrorSanitizer creates an error sanitizer.
func NewErrorSanitizer(logger *slog.Logger) *ErrorSanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorSanitizer{logger: logger}
}

// Respond writes the sanitized error response for err.
func (s *ErrorSanitizer) Respond(c *gin.Context, err error) {
	correlationID := s.correlationID(c)

	domainErr, ok := err.(*domain.Error)
	if !ok {
		s.logger.Error("unhandled error",
			"correlation_id", correlationID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":        false,
			"error":          gin.H{"code": "INTERNAL_ERROR", "message": "An internal error occurred"},
			"correlation_id": correlationID,
		})
		return
	}

	attrs := []any{
		"correlation_id", correlationID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error_type", string(domainErr.Type),
		"error_code", domainErr.Code,
	}
	if domainErr.Cause != nil {
		attrs = append(attrs, "cause", domainErr.Cause.Error())
	}
	if domainErr.Type == domain.InternalError || domainErr.Type == domain.ExternalServiceError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Info("request rejected", attrs...)
	}

	body := gin.H{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	// Internal causes are never echoed; structured details like
	// attempts_remaining and deny reason are part of the contract.
	if len(domainErr.Details) > 0 && domainErr.Type != domain.InternalError {
		body["details"] = domainErr.Details
	}
	c.JSON(statusForError(domainErr), gin.H{
		"success":        false,
		"error":          body,
		"correlation_id": correlationID,
	})
}

func (s *ErrorSanitizer) correlationID(c *gin.Context) string {
	if id, exists := c.Get("correlation_id"); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	id := c.GetHeader("X-Correlation-ID")
	if id == "" {
		id = uuid.New().String()
	}
	c.Set("correlation_id", id)
	c.Header("X-Correlation-ID", id)
	return id
}

func statusForError(err *domain.Error) int {
	switch err.Type {
	case domain.ValidationError:
		return http.StatusBadRequest
	case domain.NotFoundError:
		return http.StatusNotFound
	case domain.ConflictError:
		return http.StatusConflict
	case domain.AdmissionError:
		return http.StatusForbidden
	case domain.ChallengeError:
		return http.StatusUnprocessableEntity
	case domain.ExpiredError:
		return http.StatusGone
	case domain.ExternalServiceError:
		if domain.IsRetryable(err) {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
