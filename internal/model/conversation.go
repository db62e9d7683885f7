package model

import "time"

// PlaceholderTitle is the title a conversation carries until someone names it.
const PlaceholderTitle = "New Chat"

type Conversation struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 string    `gorm:"size:128;not null;index" json:"user_id"`
	Title                  string    `gorm:"size:128;not null" json:"title"`
	IsPinned               bool      `gorm:"not null;default:false" json:"is_pinned"`
	ExternalConversationID *string   `gorm:"size:128;index" json:"external_conversation_id,omitempty"`
	CreatedAt              time.Time `gorm:"index" json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
