package app

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"tokenchat/internal/model"
	"tokenchat/internal/repository"
)

const (
	seedTitleRunes = 30
	maxTitleRunes  = 128
)

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

type ConversationService struct {
	store        *repository.Store
	historyCache HistoryCache
	logger       *slog.Logger
}

func NewConversationService(store *repository.Store, historyCache HistoryCache, logger *slog.Logger) *ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{
		store:        store,
		historyCache: historyCache,
		logger:       logger,
	}
}

// SeedTitle derives a conversation title from the first message: its first
// 30 characters, with "..." appended when anything was cut.
func SeedTitle(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return model.PlaceholderTitle
	}
	if utf8.RuneCountInString(seed) <= seedTitleRunes {
		return seed
	}
	return string([]rune(seed)[:seedTitleRunes]) + "..."
}

// GetOrCreateActive returns the user's most recent conversation, creating
// one titled from seed when the user has none.
func (s *ConversationService) GetOrCreateActive(ctx context.Context, userID, seed string) (*model.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}

	var conversation *model.Conversation
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		conversation, err = s.getOrCreateActive(tx, userID, seed)
		return err
	})
	if err != nil {
		return nil, storeErr("get or create conversation", err)
	}
	return conversation, nil
}

func (s *ConversationService) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	title = clampTitle(title)
	if title == "" {
		title = model.PlaceholderTitle
	}

	conversation := &model.Conversation{UserID: userID, Title: title}
	if err := s.store.WithContext(ctx).Conversations.Create(conversation); err != nil {
		return nil, storeErr("create conversation", err)
	}
	return conversation, nil
}

func (s *ConversationService) Get(ctx context.Context, conversationID uint) (*model.Conversation, error) {
	if conversationID == 0 {
		return nil, ErrInvalidInput
	}
	conversation, err := s.store.WithContext(ctx).Conversations.GetByID(conversationID)
	if err != nil {
		return nil, storeErr("get conversation", err)
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *ConversationService) AppendMessage(ctx context.Context, conversationID uint, content, role string) (*model.Message, error) {
	var message *model.Message
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		message, err = s.appendMessage(tx, conversationID, content, role)
		return err
	})
	if err != nil {
		return nil, storeErr("append message", err)
	}
	s.invalidateHistory(ctx, conversationID)
	return message, nil
}

// Publish stores msg synchronously. It lets the service stand in for the
// queue-backed publisher when no broker is configured.
func (s *ConversationService) Publish(ctx context.Context, msg model.Message) error {
	_, err := s.AppendMessage(ctx, msg.ConversationID, msg.Content, msg.Role)
	return err
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	conversations, err := s.store.WithContext(ctx).Conversations.ListByUserID(userID)
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	return conversations, nil
}

// ListMessages returns the conversation's messages oldest first. An unknown
// conversation has no messages.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID uint) ([]model.Message, error) {
	if conversationID == 0 {
		return nil, ErrInvalidInput
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.store.WithContext(ctx).Messages.ListByConversationID(conversationID, 0)
	if err != nil {
		return nil, storeErr("list messages", err)
	}

	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

// Rename sets a new title when the change is manual or the conversation
// still carries the placeholder title. Otherwise the current title wins and
// the conversation is returned unchanged.
func (s *ConversationService) Rename(ctx context.Context, conversationID uint, title string, manual bool) (*model.Conversation, error) {
	title = clampTitle(title)
	if conversationID == 0 || title == "" {
		return nil, ErrInvalidInput
	}

	var conversation *model.Conversation
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		conversation, err = tx.Conversations.GetByIDForUpdate(conversationID)
		if err != nil {
			return err
		}
		if conversation == nil {
			return ErrConversationNotFound
		}
		if !manual && conversation.Title != model.PlaceholderTitle {
			return nil
		}
		if err := tx.Conversations.UpdateTitle(conversationID, title); err != nil {
			return err
		}
		conversation.Title = title
		return nil
	})
	if err != nil {
		return nil, storeErr("rename conversation", err)
	}
	return conversation, nil
}

// TogglePin flips the pinned flag and returns its new value.
func (s *ConversationService) TogglePin(ctx context.Context, conversationID uint) (bool, error) {
	if conversationID == 0 {
		return false, ErrInvalidInput
	}

	var pinned bool
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		conversation, err := tx.Conversations.GetByIDForUpdate(conversationID)
		if err != nil {
			return err
		}
		if conversation == nil {
			return ErrConversationNotFound
		}
		pinned = !conversation.IsPinned
		return tx.Conversations.UpdatePinned(conversationID, pinned)
	})
	if err != nil {
		return false, storeErr("toggle pin", err)
	}
	return pinned, nil
}

// Delete removes the conversation and all of its messages atomically.
func (s *ConversationService) Delete(ctx context.Context, conversationID uint) error {
	if conversationID == 0 {
		return ErrInvalidInput
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		conversation, err := tx.Conversations.GetByIDForUpdate(conversationID)
		if err != nil {
			return err
		}
		if conversation == nil {
			return ErrConversationNotFound
		}
		if err := tx.Messages.DeleteByConversationID(conversationID); err != nil {
			return err
		}
		return tx.Conversations.DeleteByID(conversationID)
	})
	if err != nil {
		return storeErr("delete conversation", err)
	}

	s.invalidateHistory(ctx, conversationID)
	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

// LinkExternal records the upstream conversation id the first time the
// gateway reports one.
func (s *ConversationService) LinkExternal(ctx context.Context, conversationID uint, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if conversationID == 0 || externalID == "" {
		return ErrInvalidInput
	}
	if err := s.store.WithContext(ctx).Conversations.UpdateExternalID(conversationID, externalID); err != nil {
		return storeErr("link external conversation", err)
	}
	return nil
}

func (s *ConversationService) getOrCreateActive(tx *repository.Store, userID, seed string) (*model.Conversation, error) {
	latest, err := tx.Conversations.GetLatestByUserID(userID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return latest, nil
	}

	conversation := &model.Conversation{
		UserID: userID,
		Title:  SeedTitle(seed),
	}
	if err := tx.Conversations.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// resolve picks the conversation a chat message belongs to: the requested
// one when given (it must belong to userID), otherwise the active one.
func (s *ConversationService) resolve(tx *repository.Store, userID string, conversationID *uint, seed string) (*model.Conversation, error) {
	if conversationID == nil || *conversationID == 0 {
		return s.getOrCreateActive(tx, userID, seed)
	}
	conversation, err := tx.Conversations.GetByID(*conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil || conversation.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *ConversationService) appendMessage(tx *repository.Store, conversationID uint, content, role string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	role = strings.TrimSpace(role)
	if conversationID == 0 || content == "" || !model.ValidRole(role) {
		return nil, ErrInvalidInput
	}

	conversation, err := tx.Conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	message := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.Messages.Create(message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *ConversationService) invalidateHistory(ctx context.Context, conversationID uint) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, conversationID)
	_ = s.historyCache.DeleteHistory(ctx, conversationID)
}

func clampTitle(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return title
}
