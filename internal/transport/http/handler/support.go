package handler

import (
	"github.com/gin-gonic/gin"

	"tokenchat/internal/app"
	"tokenchat/internal/transport/http/response"
)

type SupportHandler struct {
	support *app.SupportService
}

func NewSupportHandler(support *app.SupportService) *SupportHandler {
	return &SupportHandler{support: support}
}

func (h *SupportHandler) ListBots(c *gin.Context) {
	bots, err := h.support.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, bots)
}

func (h *SupportHandler) SelectBot(c *gin.Context) {
	botID, ok := uintParam(c, "bot_id")
	if !ok {
		return
	}

	selection, err := h.support.Select(c.Request.Context(), botID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, selection)
}
