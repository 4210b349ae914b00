package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	DataPath     string

	GeminiAPIKey string
	GroqAPIKey   string

	// Matching knobs
	WeightsPath        string
	DefaultRadiusMiles float64

	// HTTP API
	HTTPAddr  string
	JWTSecret string

	// Yelp Fusion (optional; ingest from Yelp is disabled without it)
	YelpAPIKey string

	// Google Calendar (optional; suggestions degrade without it)
	GoogleCalendarID    string
	GoogleCalendarToken string

	// Telegram Config
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAdminUserID int64

	// Logging
	LogLevel  string
	LogFormat string
}

// NewFromEnv creates a new Config object from environment variables. A .env
// file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("GLOWGO_DB_PATH")
	if dbPath == "" {
		dbPath = "data/glowgo.db"
	}

	dataPath := os.Getenv("GLOWGO_DATA_PATH")
	if dataPath == "" {
		dataPath = "data"
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	groqAPIKey := os.Getenv("GROQ_API_KEY")
	if geminiAPIKey == "" && groqAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY or GROQ_API_KEY environment variable not set")
	}

	radius := 10.0
	if s := os.Getenv("GLOWGO_RADIUS_MILES"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GLOWGO_RADIUS_MILES: %w", err)
		}
		radius = v
	}

	httpAddr := os.Getenv("GLOWGO_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	jwtSecret := os.Getenv("GLOWGO_JWT_SECRET")

	// Telegram Config (Optional for CLI, required for Bot)
	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramWebhookURL := os.Getenv("TELEGRAM_WEBHOOK_URL")
	var telegramAdminUserID int64
	if s := os.Getenv("TELEGRAM_ADMIN_USER_ID"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_USER_ID: %w", err)
		}
		telegramAdminUserID = v
	}

	logLevel := os.Getenv("GLOWGO_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("GLOWGO_LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}

	return &Config{
		DatabasePath:        dbPath,
		DataPath:            dataPath,
		GeminiAPIKey:        geminiAPIKey,
		GroqAPIKey:          groqAPIKey,
		WeightsPath:         os.Getenv("GLOWGO_WEIGHTS_PATH"),
		DefaultRadiusMiles:  radius,
		HTTPAddr:            httpAddr,
		JWTSecret:           jwtSecret,
		YelpAPIKey:          os.Getenv("YELP_API_KEY"),
		GoogleCalendarID:    os.Getenv("GOOGLE_CALENDAR_ID"),
		GoogleCalendarToken: os.Getenv("GOOGLE_CALENDAR_TOKEN"),
		TelegramBotToken:    telegramBotToken,
		TelegramWebhookURL:  telegramWebhookURL,
		TelegramAdminUserID: telegramAdminUserID,
		LogLevel:            logLevel,
		LogFormat:           logFormat,
	}, nil
}
