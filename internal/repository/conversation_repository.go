package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenchat/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conversation *model.Conversation) error {
	if err := r.db.Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

// ListByUserID orders pinned conversations first, newest first within each group.
func (r *ConversationRepository) ListByUserID(userID string) ([]model.Conversation, error) {
	conversations := make([]model.Conversation, 0)
	if err := r.db.Where("user_id = ?", userID).
		Order("is_pinned DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) GetLatestByUserID(userID string) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest conversation failed: %w", err)
	}
	return &conversation, nil
}

func (r *ConversationRepository) GetByID(id uint) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.First(&conversation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}

// GetByIDForUpdate reads the conversation and locks its row for the rest of
// the transaction on dialects that support row locks.
func (r *ConversationRepository) GetByIDForUpdate(id uint) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&conversation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock conversation failed: %w", err)
	}
	return &conversation, nil
}

func (r *ConversationRepository) UpdateTitle(id uint, title string) error {
	if err := r.db.Model(&model.Conversation{}).Where("id = ?", id).Update("title", title).Error; err != nil {
		return fmt.Errorf("update conversation title failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) UpdatePinned(id uint, pinned bool) error {
	if err := r.db.Model(&model.Conversation{}).Where("id = ?", id).Update("is_pinned", pinned).Error; err != nil {
		return fmt.Errorf("update conversation pin failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) UpdateExternalID(id uint, externalID string) error {
	if err := r.db.Model(&model.Conversation{}).Where("id = ?", id).Update("external_conversation_id", externalID).Error; err != nil {
		return fmt.Errorf("update conversation external id failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) DeleteByID(id uint) error {
	if err := r.db.Delete(&model.Conversation{}, id).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}
