package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"tokenchat/internal/app"
	"tokenchat/internal/transport/http/middleware"
	"tokenchat/internal/transport/http/response"
)

type ConversationHandler struct {
	conversations *app.ConversationService
}

type NewConversationRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Title  string `json:"title" binding:"max=128"`
}

type RenameRequest struct {
	Title        string `json:"title" binding:"required"`
	ManualUpdate bool   `json:"manual_update"`
}

type AppendMessageRequest struct {
	ConversationID uint   `json:"conversation_id" binding:"required,gt=0"`
	Content        string `json:"content" binding:"required"`
	Role           string `json:"role" binding:"required"`
}

type conversationItem struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	IsPinned  bool      `json:"is_pinned"`
}

type messageItem struct {
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func NewConversationHandler(conversations *app.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// List serves GET /conversations/:id where id is a user id.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.Param("id")
	if !middleware.Authorize(c, userID) {
		return
	}

	conversations, err := h.conversations.List(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	items := make([]conversationItem, 0, len(conversations))
	for _, conv := range conversations {
		items = append(items, conversationItem{
			ID:        conv.ID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt,
			IsPinned:  conv.IsPinned,
		})
	}
	response.OK(c, items)
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req NewConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !middleware.Authorize(c, req.UserID) {
		return
	}

	conversation, err := h.conversations.Create(c.Request.Context(), req.UserID, req.Title)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{
		"status":          statusSuccess,
		"conversation_id": conversation.ID,
	})
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	conversationID, ok := uintParam(c, "id")
	if !ok || !h.authorizeConversation(c, conversationID, true) {
		return
	}

	messages, err := h.conversations.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	items := make([]messageItem, 0, len(messages))
	for _, msg := range messages {
		items = append(items, messageItem{
			Content:   msg.Content,
			Role:      msg.Role,
			CreatedAt: msg.CreatedAt,
		})
	}
	response.OK(c, items)
}

func (h *ConversationHandler) Rename(c *gin.Context) {
	conversationID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !h.authorizeConversation(c, conversationID, false) {
		return
	}

	conversation, err := h.conversations.Rename(c.Request.Context(), conversationID, req.Title, req.ManualUpdate)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{
		"status":          statusSuccess,
		"conversation_id": conversation.ID,
		"title":           conversation.Title,
	})
}

func (h *ConversationHandler) TogglePin(c *gin.Context) {
	conversationID, ok := uintParam(c, "id")
	if !ok || !h.authorizeConversation(c, conversationID, false) {
		return
	}

	pinned, err := h.conversations.TogglePin(c.Request.Context(), conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{
		"status":    statusSuccess,
		"is_pinned": pinned,
	})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, ok := uintParam(c, "id")
	if !ok || !h.authorizeConversation(c, conversationID, false) {
		return
	}

	if err := h.conversations.Delete(c.Request.Context(), conversationID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"status": statusSuccess})
}

// AppendMessage serves POST /messages.
func (h *ConversationHandler) AppendMessage(c *gin.Context) {
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !h.authorizeConversation(c, req.ConversationID, false) {
		return
	}

	message, err := h.conversations.AppendMessage(c.Request.Context(), req.ConversationID, req.Content, req.Role)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{
		"status":     statusSuccess,
		"message_id": message.ID,
	})
}

// authorizeConversation checks the caller owns the conversation when
// authentication is on. allowMissing lets reads of unknown conversations
// through so they can answer with an empty listing.
func (h *ConversationHandler) authorizeConversation(c *gin.Context, conversationID uint, allowMissing bool) bool {
	if _, authenticated := c.Get(middleware.ContextUserIDKey); !authenticated {
		return true
	}

	conversation, err := h.conversations.Get(c.Request.Context(), conversationID)
	if err != nil {
		if allowMissing && errors.Is(err, app.ErrConversationNotFound) {
			return true
		}
		response.FromError(c, err)
		return false
	}
	return middleware.Authorize(c, conversation.UserID)
}
