package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	JWTExpiry          time.Duration
	OperatorPassword   string // bcrypt hash; empty disables API auth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleProjectID    string
	GooglePubSubTopic  string
	GoogleCredentials  string
	OllamaBaseURL      string
	OllamaModel        string
	OllamaTimeout      time.Duration
	OllamaNumCtx       int
	OllamaNumPredict   int
	GmailMaxResults    int64
	GmailLookback      time.Duration
	PollInterval       time.Duration
	LogRetention       int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "host=localhost user=labeler password=labeler dbname=labeler port=5432 sslmode=disable"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiry:          getDuration("JWT_EXPIRY", 24*time.Hour),
		OperatorPassword:   getEnv("OPERATOR_PASSWORD_HASH", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost"),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:  getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		OllamaBaseURL:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3.2"),
		OllamaTimeout:      getDuration("OLLAMA_TIMEOUT", 10*time.Minute),
		OllamaNumCtx:       getInt("OLLAMA_NUM_CTX", 4096),
		OllamaNumPredict:   getInt("OLLAMA_NUM_PREDICT", 200),
		GmailMaxResults:    int64(getInt("GMAIL_MAX_RESULTS", 50)),
		GmailLookback:      getDuration("GMAIL_LOOKBACK", 24*time.Hour),
		PollInterval:       getDuration("POLL_INTERVAL", 5*time.Minute),
		LogRetention:       getInt("LOG_RETENTION", 500),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
