package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuccessResponse returns a standardized success envelope.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, successEnvelope(c, data))
}

// CreatedResponse returns a standardized creation envelope.
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, successEnvelope(c, data))
}

// successEnvelope carries the correlation id on success responses too, so
// a client can reference any response, not just failures, in a support
// request.
func successEnvelope(c *gin.Context, data interface{}) gin.H {
	envelope := gin.H{
		"success": true,
		"data":    data,
	}
	if id, exists := c.Get("correlation_id"); exists {
		envelope["correlation_id"] = id
	}
	return envelope
}
