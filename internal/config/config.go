package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Redis (optional, enables cross-process event fan-out)
	RedisURL string

	// Gemini AI
	GeminiAPIKey      string
	GeminiModel       string
	GeminiMaxAttempts int
	GeminiRetryDelay  time.Duration

	// Uploads
	MaxUploadBytes int64
	ExtractWorkers int

	// Sessions
	SessionIdleTimeout time.Duration

	// Ask endpoint rate limit (requests per minute per IP)
	AskRateLimitPerMin int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		GeminiAPIKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiMaxAttempts:  getEnvAsIntOrDefault("GEMINI_MAX_ATTEMPTS", 3),
		GeminiRetryDelay:   time.Duration(getEnvAsIntOrDefault("GEMINI_RETRY_DELAY_SECONDS", 15)) * time.Second,
		MaxUploadBytes:     int64(getEnvAsIntOrDefault("MAX_UPLOAD_MB", 50)) << 20,
		ExtractWorkers:     getEnvAsIntOrDefault("EXTRACT_WORKERS", 4),
		SessionIdleTimeout: time.Duration(getEnvAsIntOrDefault("SESSION_IDLE_TIMEOUT_MINUTES", 120)) * time.Minute,
		AskRateLimitPerMin: getEnvAsIntOrDefault("ASK_RATE_LIMIT_PER_MIN", 20),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate rejects settings the conversation driver cannot work with.
func (c *Config) Validate() error {
	if c.GeminiMaxAttempts < 1 {
		return fmt.Errorf("GEMINI_MAX_ATTEMPTS must be at least 1, got %d", c.GeminiMaxAttempts)
	}
	if c.GeminiRetryDelay < 0 {
		return fmt.Errorf("GEMINI_RETRY_DELAY_SECONDS must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.ExtractWorkers < 1 {
		return fmt.Errorf("EXTRACT_WORKERS must be at least 1, got %d", c.ExtractWorkers)
	}
	if c.GeminiModel == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
