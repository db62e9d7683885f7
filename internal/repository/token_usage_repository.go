package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenchat/internal/model"
)

type TokenUsageRepository struct {
	db *gorm.DB
}

func NewTokenUsageRepository(db *gorm.DB) *TokenUsageRepository {
	return &TokenUsageRepository{db: db}
}

// GetOrCreate returns the ledger row for userID, inserting one with
// defaultTokens when none exists. Concurrent callers race on the unique
// user_id index; the loser's insert is ignored and both read the same row.
func (r *TokenUsageRepository) GetOrCreate(userID string, defaultTokens int) (*model.TokenUsage, error) {
	existing, err := r.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	usage := &model.TokenUsage{
		UserID:          userID,
		RemainingTokens: defaultTokens,
		LastUpdated:     time.Now().UTC(),
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(usage).Error; err != nil {
		return nil, fmt.Errorf("create token usage failed: %w", err)
	}

	// A locking read sees rows committed after this transaction's snapshot.
	existing, err = r.GetByUserIDForUpdate(userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("token usage for %q vanished after insert", userID)
	}
	return existing, nil
}

func (r *TokenUsageRepository) GetByUserID(userID string) (*model.TokenUsage, error) {
	var usage model.TokenUsage
	if err := r.db.Where("user_id = ?", userID).First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token usage failed: %w", err)
	}
	return &usage, nil
}

// GetByUserIDForUpdate reads the row and locks it for the rest of the
// transaction on dialects that support row locks.
func (r *TokenUsageRepository) GetByUserIDForUpdate(userID string) (*model.TokenUsage, error) {
	var usage model.TokenUsage
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock token usage failed: %w", err)
	}
	return &usage, nil
}

// Debit subtracts amount in a single arithmetic update.
func (r *TokenUsageRepository) Debit(userID string, amount int) error {
	if err := r.db.Model(&model.TokenUsage{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"remaining_tokens": gorm.Expr("remaining_tokens - ?", amount),
			"last_updated":     time.Now().UTC(),
		}).Error; err != nil {
		return fmt.Errorf("debit token usage failed: %w", err)
	}
	return nil
}

func (r *TokenUsageRepository) SetRemaining(userID string, remaining int) error {
	if err := r.db.Model(&model.TokenUsage{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"remaining_tokens": remaining,
			"last_updated":     time.Now().UTC(),
		}).Error; err != nil {
		return fmt.Errorf("set token usage failed: %w", err)
	}
	return nil
}
