package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config keeps runtime settings for the journal.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" default:"journal.db"`
	PhotoDir    string `envconfig:"PHOTO_DIR" default:"photos"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	// APIKey, when set, is required in the X-API-KEY header of /api requests.
	APIKey string `envconfig:"API_KEY"`

	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool          `envconfig:"LOG_DEVELOPMENT" default:"false"`
	SlowQuery      time.Duration `envconfig:"SLOW_QUERY" default:"1s"`

	// ConsumerName is shown for ingestions without an explicit consumer.
	ConsumerName    string `envconfig:"CONSUMER_NAME" default:"me"`
	SuggestionLimit int    `envconfig:"SUGGESTION_LIMIT" default:"2000"`
	MaxImportBytes  int64  `envconfig:"MAX_IMPORT_BYTES" default:"268435456"`

	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
	// DigestTime is the HH:MM of the daily summary message; empty disables it.
	DigestTime string `envconfig:"DIGEST_TIME"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	BackupKeep  int    `envconfig:"BACKUP_KEEP" default:"4"`
	BackupTime  string `envconfig:"BACKUP_TIME" default:"03:30"`
}

// Prefix is prepended to every variable name, e.g. JOURNAL_DATABASE_URL.
const Prefix = "JOURNAL"

// Load reads configuration from the environment, after loading an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return cfg, fmt.Errorf("process env: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ConsumerName = strings.TrimSpace(cfg.ConsumerName)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s_DATABASE_URL must not be empty", Prefix)
	}
	if c.SuggestionLimit < 0 {
		return fmt.Errorf("%s_SUGGESTION_LIMIT must not be negative", Prefix)
	}
	if c.MaxImportBytes <= 0 {
		return fmt.Errorf("%s_MAX_IMPORT_BYTES must be positive", Prefix)
	}
	if c.BackupKeep < 1 {
		return fmt.Errorf("%s_BACKUP_KEEP must be at least 1", Prefix)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("%s_TELEGRAM_CHAT_ID is required when a telegram token is set", Prefix)
	}
	return nil
}

// TelegramEnabled reports whether reminders should be delivered through Telegram.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// BackupEnabled reports whether enough S3 settings are present to upload backups.
func (c Config) BackupEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
