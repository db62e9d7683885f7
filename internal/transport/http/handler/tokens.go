package handler

import (
	"github.com/gin-gonic/gin"

	"tokenchat/internal/app"
	"tokenchat/internal/transport/http/middleware"
	"tokenchat/internal/transport/http/response"
)

type TokenHandler struct {
	ledger *app.LedgerService
}

func NewTokenHandler(ledger *app.LedgerService) *TokenHandler {
	return &TokenHandler{ledger: ledger}
}

func (h *TokenHandler) Balance(c *gin.Context) {
	userID := c.Param("user_id")
	if !middleware.Authorize(c, userID) {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"remaining_tokens": balance})
}

func (h *TokenHandler) Reset(c *gin.Context) {
	userID := c.Param("user_id")
	if !middleware.Authorize(c, userID) {
		return
	}

	balance, err := h.ledger.Reset(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":          "Tokens reset successfully",
		"remaining_tokens": balance,
	})
}
