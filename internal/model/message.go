package model

import "time"

const (
	RoleUser      = "user"
	RoleBot       = "bot"
	RoleAssistant = "assistant"
)

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// ValidRole reports whether role is one a message may be stored with.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleBot, RoleAssistant:
		return true
	}
	return false
}
