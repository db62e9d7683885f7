package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one *gorm.DB handle, so a
// transaction can hand every repository the same tx.
type Store struct {
	db            *gorm.DB
	Usage         *TokenUsageRepository
	Conversations *ConversationRepository
	Messages      *MessageRepository
	Supports      *SupportRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Usage:         NewTokenUsageRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		Supports:      NewSupportRepository(db),
	}
}

// WithContext returns a Store whose queries carry ctx.
func (s *Store) WithContext(ctx context.Context) *Store {
	return NewStore(s.db.WithContext(ctx))
}

// Transaction runs fn inside a database transaction. The transaction is
// rolled back when fn returns an error or panics.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *Store) DB() *gorm.DB {
	return s.db
}
