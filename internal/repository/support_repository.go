package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenchat/internal/model"
)

type SupportRepository struct {
	db *gorm.DB
}

func NewSupportRepository(db *gorm.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

// Upsert inserts the bot or refreshes description and model of the bot
// with the same title.
func (r *SupportRepository) Upsert(support *model.Support) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "dify_model"}),
	}).Create(support).Error; err != nil {
		return fmt.Errorf("upsert support bot failed: %w", err)
	}
	return nil
}

func (r *SupportRepository) List() ([]model.Support, error) {
	supports := make([]model.Support, 0)
	if err := r.db.Order("id ASC").Find(&supports).Error; err != nil {
		return nil, fmt.Errorf("list support bots failed: %w", err)
	}
	return supports, nil
}

func (r *SupportRepository) GetByID(id uint) (*model.Support, error) {
	var support model.Support
	if err := r.db.First(&support, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get support bot failed: %w", err)
	}
	return &support, nil
}
