package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betledger/internal/auth"
	"betledger/internal/service"
)

// AccountHandler serves registration, login and the user read surface.
type AccountHandler struct {
	Accounts *service.AccountService
	Tokens   *auth.TokenService
}

func (h *AccountHandler) Register(r *gin.Engine) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.GET("/leaderboard", h.leaderboard)

	authed := r.Group("", RequireUser(h.Tokens))
	authed.GET("/profile", h.profile)
}

type registerRequest struct {
	Handle     string  `json:"handle" binding:"required"`
	Contact    string  `json:"contact" binding:"required"`
	Password   string  `json:"password" binding:"required"`
	ExternalID *string `json:"external_id"`
}

func (h *AccountHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	user, err := h.Accounts.Register(c.Request.Context(), service.RegisterInput{
		Handle:     req.Handle,
		Contact:    req.Contact,
		Password:   req.Password,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, user, nil)
}

type loginRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AccountHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.Accounts.Login(c.Request.Context(), req.Handle, req.Password, c.ClientIP())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"token": result.Token,
		"user":  result.User,
	}, nil)
}

func (h *AccountHandler) profile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}
	user, err := h.Accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, user, nil)
}

func (h *AccountHandler) leaderboard(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 10)
	entries, err := h.Accounts.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, entries, map[string]any{"count": len(entries)})
}
