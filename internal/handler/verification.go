package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"betledger/internal/auth"
	"betledger/internal/ledger"
	"betledger/internal/service"
)

// VerificationHandler serves the identity-bridge surface: the user-initiated
// link flow and the inbound confirmation webhook.
type VerificationHandler struct {
	Verification *service.VerificationService
	Tokens       *auth.TokenService
}

func (h *VerificationHandler) Register(r *gin.Engine) {
	authed := r.Group("", RequireUser(h.Tokens))
	authed.POST("/discord/link", h.link)

	r.POST("/webhook/discord-verified", h.confirm)
}

type linkRequest struct {
	ExternalID string `json:"discord_id" binding:"required"`
	Key        string `json:"key" binding:"required"`
}

func (h *VerificationHandler) link(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.Verification.Link(c.Request.Context(), userID, req.ExternalID, req.Key)
	if err != nil {
		// A bridge we could not reach is an upstream failure, not a
		// client error.
		if !isDomainError(err) {
			Error(c, http.StatusBadGateway, "verification bridge unavailable", nil)
			return
		}
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"user":          result.User,
		"bonus_granted": result.BonusGranted,
	}, nil)
}

type confirmRequest struct {
	ExternalID string `json:"discord_id" binding:"required"`
	Secret     string `json:"secret" binding:"required"`
}

func (h *VerificationHandler) confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.Verification.Confirm(c.Request.Context(), req.ExternalID, req.Secret)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"found":   result.Found,
		"user_id": result.UserID,
	}, nil)
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		ledger.ErrBridgeRejected,
		ledger.ErrExternalIDTaken,
		ledger.ErrUserNotFound,
		ledger.ErrUserInactive,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
