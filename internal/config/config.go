package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI    string
	TelegramToken  string
	TelegramChatID int64
	AIAPIKey       string
	AIBaseURL      string
	AIModel        string

	LedgerPath string

	FollowupInterval   time.Duration
	MissedCutoffMinute int
	MissedDelay        time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	return &Config{
		DatabaseURI:    os.Getenv("DATABASE_URI"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		AIAPIKey:       os.Getenv("AI_API_KEY"),
		AIBaseURL:      getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:        getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),

		LedgerPath: getEnvOrDefault("LEDGER_PATH", "data/ledger"),

		FollowupInterval:   getEnvDuration("FOLLOWUP_INTERVAL", 4*time.Minute),
		MissedCutoffMinute: getEnvInt("MISSED_CUTOFF_MINUTES", 60),
		MissedDelay:        getEnvDuration("MISSED_DELAY", 30*time.Second),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
