package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"finlink/internal/api/middleware"
	"finlink/internal/domain"
	"finlink/internal/services"
)

// LinkingHandler exposes the linking state machine over HTTP.
type LinkingHandler struct {
	linking   services.LinkingService
	sanitizer *ErrorSanitizer
}

// NewLinkingHandler creates a linking handler.
func NewLinkingHandler(linking services.LinkingService, logger *slog.Logger) *LinkingHandler {
	return &LinkingHandler{
		linking:   linking,
		sanitizer: NewErrorSanitizer(logger),
	}
}

// RegisterRoutes mounts the linking routes under group.
func (h *LinkingHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/sessions", h.StartSession)
	group.POST("/sessions/:token/accounts", h.SelectAccounts)
	group.GET("/sessions/:token/mfa", h.IssueMfaChallenge)
	group.POST("/sessions/:token/mfa", h.CompleteMfa)
	group.POST("/sessions/:token/verification", h.CompleteVerification)
	group.POST("/sessions/:token/finalize", h.Finalize)
	group.DELETE("/sessions/:token", h.Cancel)
	group.GET("/sessions/:token", h.GetStatus)
}

type startSessionRequest struct {
	InstitutionHint string `json:"institution_hint"`
}

// StartSession handles POST /sessions.
func (h *LinkingHandler) StartSession(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		h.sanitizer.Respond(c, domain.NewValidationError("user_id", "Authenticated user required", nil))
		return
	}

	var req startSessionRequest
	// The body is optional; an institution hint is the only field.
	_ = c.ShouldBindJSON(&req)

	result, err := h.linking.StartSession(c.Request.Context(), userID, req.InstitutionHint)
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	CreatedResponse(c, result)
}

type selectAccountsRequest struct {
	PublicToken string   `json:"public_token" binding:"required"`
	AccountIDs  []string `json:"account_ids" binding:"required,min=1"`
}

// SelectAccounts handles POST /sessions/:token/accounts.
func (h *LinkingHandler) SelectAccounts(c *gin.Context) {
	var req selectAccountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sanitizer.Respond(c, domain.NewValidationError("body", "Invalid request body", nil))
		return
	}

	next, err := h.linking.SelectAccounts(c.Request.Context(), c.Param("token"), req.PublicToken, req.AccountIDs)
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, next)
}

// IssueMfaChallenge handles GET /sessions/:token/mfa.
func (h *LinkingHandler) IssueMfaChallenge(c *gin.Context) {
	challenge, err := h.linking.IssueMfaChallenge(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, challenge)
}

type completeMfaRequest struct {
	Answers []string `json:"answers" binding:"required,min=1"`
}

// CompleteMfa handles POST /sessions/:token/mfa.
func (h *LinkingHandler) CompleteMfa(c *gin.Context) {
	var req completeMfaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sanitizer.Respond(c, domain.NewValidationError("body", "Invalid request body", nil))
		return
	}

	next, err := h.linking.CompleteMfa(c.Request.Context(), c.Param("token"), req.Answers)
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, next)
}

// CompleteVerification handles POST /sessions/:token/verification.
func (h *LinkingHandler) CompleteVerification(c *gin.Context) {
	var req services.VerificationSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sanitizer.Respond(c, domain.NewValidationError("body", "Invalid request body", nil))
		return
	}

	next, err := h.linking.CompleteVerification(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, next)
}

// Finalize handles POST /sessions/:token/finalize.
func (h *LinkingHandler) Finalize(c *gin.Context) {
	result, err := h.linking.Finalize(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, result)
}

// Cancel handles DELETE /sessions/:token.
func (h *LinkingHandler) Cancel(c *gin.Context) {
	if err := h.linking.Cancel(c.Request.Context(), c.Param("token")); err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, gin.H{"cancelled": true})
}

// GetStatus handles GET /sessions/:token.
func (h *LinkingHandler) GetStatus(c *gin.Context) {
	status, err := h.linking.GetStatus(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.sanitizer.Respond(c, err)
		return
	}
	SuccessResponse(c, status)
}
