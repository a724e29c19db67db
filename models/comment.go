package models

import (
	"time"
)

type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Content   string
	UserID    string    `gorm:"not null;index"`
	PostID    string    `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
	Moderatable
}

// Message is a direct message; it is moderated like any other content.
type Message struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	SenderID    string    `gorm:"not null;index"`
	RecipientID string    `gorm:"not null;index"`
	Content     string    `gorm:"type:text"`
	CreatedAt   time.Time
	Moderatable
}
