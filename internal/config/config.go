package config

import (
	"fmt"
	"os"
	"strconv"
)

const defaultDatabasePath = "data/drinkup.db"

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	LogLevel     string
	Port         string

	// Optional path to a YAML file overriding the default reminder plan.
	ReminderConfigPath string

	// Gemini is optional; without a key reminders use the fixed message.
	GeminiAPIKey string
	GeminiModel  string

	// Groq is used for reminder text when Gemini is not configured.
	GroqAPIKey string

	// Telegram Config
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAllowUserID int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	dbPath := os.Getenv("DRINKUP_DB_PATH")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	geminiModel := os.Getenv("GEMINI_MODEL")
	if geminiModel == "" {
		geminiModel = "gemini-1.5-flash"
	}

	var allowUserID int64
	if raw := os.Getenv("TELEGRAM_ALLOW_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOW_USER_ID is not a valid user id: %q", raw)
		}
		allowUserID = id
	}

	return &Config{
		DatabasePath:        dbPath,
		LogLevel:            logLevel,
		Port:                port,
		ReminderConfigPath:  os.Getenv("REMINDER_CONFIG"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         geminiModel,
		GroqAPIKey:          os.Getenv("GROQ_API_KEY"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:  os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowUserID: allowUserID,
	}, nil
}

// ValidateForBot checks the settings only the Telegram bot needs.
func (c *Config) ValidateForBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	if c.TelegramAllowUserID == 0 {
		return fmt.Errorf("TELEGRAM_ALLOW_USER_ID environment variable not set")
	}
	return nil
}
