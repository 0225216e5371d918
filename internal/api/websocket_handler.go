package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"finlink/internal/domain"
	"finlink/internal/services"
)

const statusPollInterval = time.Second

// StatusStreamHandler pushes session status over a websocket so linking
// UIs can render live progress without polling the REST endpoint.
type StatusStreamHandler struct {
	linking  services.LinkingService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStatusStreamHandler creates the websocket status handler.
func NewStatusStreamHandler(linking services.LinkingService, logger *slog.Logger) *StatusStreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusStreamHandler{
		linking: linking,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Stream handles GET /sessions/:token/stream. It sends a status frame on
// every change and closes after a terminal state is delivered.
func (h *StatusStreamHandler) Stream(c *gin.Context) {
	token := c.Param("token")

	// Reject unknown sessions before upgrading.
	status, err := h.linking.GetStatus(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"code": domain.CodeSessionNotFound}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(status); err != nil {
		return
	}
	if status.State.IsTerminal() {
		return
	}

	lastState := status.State
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			status, err := h.linking.GetStatus(c.Request.Context(), token)
			if err != nil {
				// Session reaped or deleted; tell the client and stop.
				_ = conn.WriteJSON(gin.H{"error": domain.CodeSessionNotFound})
				return
			}
			if status.State == lastState && !status.Expired {
				continue
			}
			lastState = status.State
			if err := conn.WriteJSON(status); err != nil {
				return
			}
			if status.State.IsTerminal() || status.Expired {
				return
			}
		}
	}
}
