package models

import (
	"time"

	"github.com/lib/pq"
)

// PostMedia is an image attached to a post. Image moderation targets these rows.
type PostMedia struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	PostID    string         `gorm:"not null;index" json:"post_id"`
	UserID    string         `gorm:"not null;index" json:"user_id"`
	MediaURL  string         `gorm:"not null" json:"media_url"`
	Tags      pq.StringArray `json:"tags" gorm:"type:text[]"`
	AltText   string         `gorm:"size:255" json:"alt_text"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Moderatable
}
