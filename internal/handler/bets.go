package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"betledger/internal/auth"
	"betledger/internal/service"
)

// BetsHandler serves the public catalog and the wager surface.
type BetsHandler struct {
	Catalog *service.CatalogService
	Betting *service.BettingService
	Tokens  *auth.TokenService
}

func (h *BetsHandler) Register(r *gin.Engine) {
	r.GET("/bets", h.list)
	r.GET("/bets/:id", h.get)

	authed := r.Group("", RequireUser(h.Tokens))
	authed.POST("/place_bet", h.place)
	authed.GET("/my_bets", h.myBets)
}

func (h *BetsHandler) list(c *gin.Context) {
	props, err := h.Catalog.ListActive(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, props, map[string]any{"count": len(props)})
}

func (h *BetsHandler) get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid proposition id", nil)
		return
	}
	prop, err := h.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, prop, nil)
}

type placeBetRequest struct {
	PropositionID uint64          `json:"bet_id" binding:"required"`
	Option        string          `json:"option" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
}

func (h *BetsHandler) place(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	wager, err := h.Betting.Place(c.Request.Context(), userID, req.PropositionID, req.Option, req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, wager, nil)
}

func (h *BetsHandler) myBets(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}
	views, err := h.Betting.MyWagers(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func parseIDParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
