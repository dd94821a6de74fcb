package keybridge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"betledger/internal/handler"
	"betledger/internal/ledger"
)

// Handler exposes the bridge over HTTP: key issuance, the verify webhook
// and pool stats.
type Handler struct {
	Svc *Service
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/keys/issue", h.issue)
	r.POST("/webhook/verify", h.verify)
	r.GET("/stats", h.stats)
	r.GET("/healthz", h.healthz)
}

type issueRequest struct {
	ExternalID string `json:"discord_id" binding:"required"`
}

func (h *Handler) issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	key, reissued, err := h.Svc.IssueKey(c.Request.Context(), req.ExternalID)
	if err != nil {
		if errors.Is(err, ledger.ErrKeyPoolEmpty) {
			handler.Error(c, http.StatusServiceUnavailable, "key pool exhausted", nil)
			return
		}
		handler.Fail(c, err)
		return
	}
	handler.Ok(c, gin.H{
		"key":      key.Key,
		"reissued": reissued,
	}, nil)
}

type verifyRequest struct {
	ExternalID string `json:"discord_id" binding:"required"`
	Key        string `json:"key" binding:"required"`
	RoleType   string `json:"role_type"`
	Secret     string `json:"secret" binding:"required"`
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Svc.Verify(c.Request.Context(), req.ExternalID, req.Key, req.RoleType, req.Secret); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Ok(c, gin.H{"verified": true}, nil)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Ok(c, stats, nil)
}

func (h *Handler) healthz(c *gin.Context) {
	handler.Ok(c, gin.H{"status": "ok"}, nil)
}
