package model

import "time"

// TokenUsage is the per-user token ledger row. RemainingTokens may drop
// below zero when response settlement overshoots the balance.
type TokenUsage struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	UserID          string    `gorm:"size:128;not null;uniqueIndex" json:"user_id"`
	RemainingTokens int       `gorm:"not null" json:"remaining_tokens"`
	LastUpdated     time.Time `json:"last_updated"`
}

func (TokenUsage) TableName() string {
	return "token_usage"
}
