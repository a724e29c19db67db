package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/snap-point/moderation-api/types"
)

type Config struct {
	Port          string
	Environment   string
	LogLevel      string
	JWTSecret     string
	StorageDriver string
	RedisURL      string

	Database DatabaseConfig
	R2       R2Config
	Vision   VisionConfig

	ClassifierTimeout  time.Duration
	BulkBatchSize      int
	BulkBatchDelay     time.Duration
	ImageBatchSize     int
	ImageBatchDelay    time.Duration
	SuspensionDuration time.Duration
	ImageCacheTTL      time.Duration
	SweepSchedule      string

	// TopicKeywords enables off-topic detection for posts when non-empty.
	TopicKeywords []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Region          string
}

// Enabled reports whether bucket-hosted images can be inspected.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.BucketName != "" && c.PublicURL != ""
}

type VisionConfig struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	TokenURL     string
	RatePerSec   float64
}

func (c VisionConfig) Enabled() bool {
	return c.APIURL != ""
}

// Load reads configuration from the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			Port:     getEnv("DB_PORT", "5432"),
		},
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("CLOUDFLARE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("CLOUDFLARE_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("CLOUDFLARE_BUCKET_NAME"),
			PublicURL:       os.Getenv("CLOUDFLARE_PUBLIC_URL"),
			Region:          "auto",
		},
		Vision: VisionConfig{
			APIURL:       os.Getenv("VISION_API_URL"),
			ClientID:     os.Getenv("VISION_CLIENT_ID"),
			ClientSecret: os.Getenv("VISION_CLIENT_SECRET"),
			TokenURL:     os.Getenv("VISION_TOKEN_URL"),
		},
		SweepSchedule: getEnv("SUSPENSION_SWEEP_SCHEDULE", "@every 5m"),
		TopicKeywords: getList("TOPIC_KEYWORDS"),
	}

	var err error
	if cfg.Vision.RatePerSec, err = getFloat("VISION_RATE_PER_SEC", 10); err != nil {
		return nil, err
	}
	if cfg.ClassifierTimeout, err = getDuration("CLASSIFIER_TIMEOUT", types.DEFAULT_CLASSIFIER_TIMEOUT); err != nil {
		return nil, err
	}
	if cfg.BulkBatchDelay, err = getDuration("BULK_BATCH_DELAY", types.DEFAULT_BULK_BATCH_DELAY); err != nil {
		return nil, err
	}
	if cfg.ImageBatchDelay, err = getDuration("IMAGE_BATCH_DELAY", types.DEFAULT_IMAGE_BATCH_DELAY); err != nil {
		return nil, err
	}
	if cfg.SuspensionDuration, err = getDuration("SUSPENSION_DURATION", types.DEFAULT_SUSPENSION); err != nil {
		return nil, err
	}
	if cfg.ImageCacheTTL, err = getDuration("IMAGE_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BulkBatchSize, err = getInt("BULK_BATCH_SIZE", types.DEFAULT_BULK_BATCH_SIZE); err != nil {
		return nil, err
	}
	if cfg.ImageBatchSize, err = getInt("IMAGE_BATCH_SIZE", types.DEFAULT_IMAGE_BATCH_SIZE); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

// getList splits a comma-separated variable, dropping blank entries.
func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
