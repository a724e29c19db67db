package config

import (
	"fmt"

	"github.com/snap-point/moderation-api/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// InitDB opens the connection, migrates the schema and creates the partial
// unique index that keeps at most one open queue item per content.
func InitDB(cfg DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{}, &models.Post{}, &models.Comment{}, &models.PostMedia{}, &models.Message{},
		&models.Like{}, &models.Follow{}, &models.ActivityLog{},
		&models.ModerationRecord{}, &models.QueueItem{}, &models.UserReport{}, &models.Appeal{},
		&models.Notification{}, &models.RuleState{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_open_content
		ON queue_items (content_id, content_type)
		WHERE status IN ('pending', 'in_review')`).Error
	if err != nil {
		return nil, fmt.Errorf("creating queue index: %w", err)
	}

	log.Info("database ready", zap.String("host", cfg.Host), zap.String("name", cfg.Name))
	return db, nil
}
