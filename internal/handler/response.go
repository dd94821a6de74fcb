package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"betledger/internal/auth"
	"betledger/internal/ledger"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a domain error onto its HTTP status. Unknown errors become an
// opaque 500 so internals do not leak to clients.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, ledger.ErrBadSecret):
		Error(c, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, ledger.ErrNotVerified):
		Error(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrPropositionNotFound),
		errors.Is(err, ledger.ErrKeyNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ledger.ErrDuplicateUser),
		errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, ledger.ErrExternalIDTaken),
		errors.Is(err, ledger.ErrPropositionHasWagers):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ledger.ErrRateLimited):
		Error(c, http.StatusTooManyRequests, err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidOption),
		errors.Is(err, ledger.ErrBettingClosed),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUserInactive),
		errors.Is(err, ledger.ErrKeyMismatch),
		errors.Is(err, ledger.ErrKeyUsed),
		errors.Is(err, ledger.ErrKeyPoolEmpty),
		errors.Is(err, ledger.ErrBridgeRejected):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, "internal error", nil)
	}
}
