package handler

import (
	"github.com/gin-gonic/gin"

	"tokenchat/internal/app"
	"tokenchat/internal/transport/http/middleware"
	"tokenchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
	ConversationID *uint  `json:"conversation_id"`
}

type ChatResponseRequest struct {
	Response string `json:"response" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
}

type ProxyRequest struct {
	Query          string `json:"query" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Send admits a user message: POST /chat.
func (h *ChatHandler) Send(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !middleware.Authorize(c, req.UserID) {
		return
	}

	result, err := h.chatService.Submit(c.Request.Context(), app.SubmitInput{
		UserID:         req.UserID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// RecordResponse charges for a reply: POST /chat/response.
func (h *ChatHandler) RecordResponse(c *gin.Context) {
	var req ChatResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !middleware.Authorize(c, req.UserID) {
		return
	}

	result, err := h.chatService.RecordResponse(c.Request.Context(), req.UserID, req.Response)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// Converse runs a whole turn against the gateway: POST /chat/converse.
func (h *ChatHandler) Converse(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !middleware.Authorize(c, req.UserID) {
		return
	}

	result, err := h.chatService.Converse(c.Request.Context(), app.SubmitInput{
		UserID:         req.UserID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// Proxy forwards a query without quota accounting: POST /proxy/chat.
func (h *ChatHandler) Proxy(c *gin.Context) {
	var req ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !middleware.Authorize(c, req.UserID) {
		return
	}

	result, err := h.chatService.Proxy(c.Request.Context(), app.ProxyInput{
		Query:          req.Query,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}
