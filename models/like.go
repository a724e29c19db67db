package models

import (
	"time"
)

type Like struct {
	LikeID    uint      `gorm:"column:like_id;primaryKey;autoIncrement"`
	PostID    string    `gorm:"column:post_id;not null;index"`
	UserID    string    `gorm:"column:user_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
