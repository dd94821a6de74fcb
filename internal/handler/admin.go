package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"betledger/internal/service"
)

// AdminHandler serves the static-token admin surface: proposition
// lifecycle, settlement and balance adjustments.
type AdminHandler struct {
	Catalog    *service.CatalogService
	Settlement *service.SettlementService
	Accounts   *service.AccountService
	AdminToken string
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/admin", RequireAdmin(h.AdminToken))
	g.POST("/bets", h.createProposition)
	g.GET("/bets", h.listPropositions)
	g.PUT("/bets/:id", h.updateProposition)
	g.POST("/bets/:id/settle", h.settle)
	g.GET("/users", h.listUsers)
	g.PUT("/users/:id/balance", h.setBalance)
}

type propositionRequest struct {
	Title       string                `json:"title"`
	Description *string               `json:"description"`
	Options     []service.OptionInput `json:"options"`
	Active      *bool                 `json:"active"`
	ClosesAt    *time.Time            `json:"closes_at"`
}

func (h *AdminHandler) createProposition(c *gin.Context) {
	var req propositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	prop, err := h.Catalog.Create(c.Request.Context(), service.CreatePropositionInput{
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ClosesAt:    req.ClosesAt,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, prop, nil)
}

func (h *AdminHandler) listPropositions(c *gin.Context) {
	props, err := h.Catalog.ListAll(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, props, map[string]any{"count": len(props)})
}

func (h *AdminHandler) updateProposition(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid proposition id", nil)
		return
	}
	var req propositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	in := service.UpdatePropositionInput{
		Description: req.Description,
		Options:     req.Options,
		Active:      req.Active,
		ClosesAt:    req.ClosesAt,
	}
	if req.Title != "" {
		in.Title = &req.Title
	}
	prop, err := h.Catalog.Update(c.Request.Context(), id, in)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, prop, nil)
}

type settleRequest struct {
	WinningOption string `json:"winning_option" binding:"required"`
}

func (h *AdminHandler) settle(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid proposition id", nil)
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.Settlement.Settle(c.Request.Context(), id, req.WinningOption)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *AdminHandler) listUsers(c *gin.Context) {
	users, err := h.Accounts.ListUsers(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, users, map[string]any{"count": len(users)})
}

type setBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

func (h *AdminHandler) setBalance(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	var req setBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Accounts.SetBalance(c.Request.Context(), id, req.Balance); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"user_id": id, "balance": req.Balance}, nil)
}
