package app

import (
	"context"
	"log/slog"
	"strings"

	"tokenchat/internal/model"
	"tokenchat/internal/repository"
)

type SupportBotSpec struct {
	Title       string
	Description string
	DifyModel   string
}

type SupportSelection struct {
	Status        string `json:"status"`
	SelectedBotID uint   `json:"selected_bot_id"`
	DifyModel     string `json:"dify_model"`
}

type SupportService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewSupportService(store *repository.Store, logger *slog.Logger) *SupportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupportService{store: store, logger: logger}
}

// Seed upserts the configured bots by title. Bots without a title are skipped.
func (s *SupportService) Seed(ctx context.Context, bots []SupportBotSpec) error {
	seeded := 0
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		for _, bot := range bots {
			title := strings.TrimSpace(bot.Title)
			if title == "" {
				continue
			}
			if err := tx.Supports.Upsert(&model.Support{
				Title:       title,
				Description: strings.TrimSpace(bot.Description),
				DifyModel:   strings.TrimSpace(bot.DifyModel),
			}); err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return storeErr("seed support bots", err)
	}
	if seeded > 0 {
		s.logger.Info("support bots seeded", "count", seeded)
	}
	return nil
}

func (s *SupportService) List(ctx context.Context) ([]model.Support, error) {
	bots, err := s.store.WithContext(ctx).Supports.List()
	if err != nil {
		return nil, storeErr("list support bots", err)
	}
	return bots, nil
}

func (s *SupportService) Select(ctx context.Context, botID uint) (*SupportSelection, error) {
	if botID == 0 {
		return nil, ErrInvalidInput
	}
	bot, err := s.store.WithContext(ctx).Supports.GetByID(botID)
	if err != nil {
		return nil, storeErr("select support bot", err)
	}
	if bot == nil {
		return nil, ErrSupportBotNotFound
	}
	return &SupportSelection{
		Status:        statusSuccess,
		SelectedBotID: bot.ID,
		DifyModel:     bot.DifyModel,
	}, nil
}
