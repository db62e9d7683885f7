package model

import "time"

type Support struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:128;not null;uniqueIndex" json:"title"`
	Description string    `gorm:"size:512" json:"description"`
	DifyModel   string    `gorm:"size:128" json:"dify_model"`
	CreatedAt   time.Time `json:"created_at"`
}
