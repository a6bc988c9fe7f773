// Package config provides configuration management for the call center client.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and is not modified
// afterwards.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// embeddedEnv contains the .env template embedded at build time.
//
// It carries no credentials; those come from the environment or an external
// .env file.
//
//go:embed .env
var embeddedEnv string

// DefaultBaseURL is the production backend.
const DefaultBaseURL = "https://callcenter.skillmissionassam.org"

// Config holds all application configuration.
type Config struct {
	// Backend
	BaseURL string // API root, e.g. https://callcenter.skillmissionassam.org
	LoginID int64  // Owner id sent with list queries

	// Credentials, required only by the watch service
	Username string
	Password string

	// Local state
	StatePath string // SQLite file holding the session and seen tickets

	// HTTP and paging
	HTTPTimeout    time.Duration
	PageSize       int
	MaxPages       int // Maximum pages fetched per watch cycle
	WorkerPoolSize int // Concurrent chat fetches

	// Watch loop
	FetchInterval   time.Duration
	MaxLoginRetries int
	LoginRetryDelay time.Duration

	// Telegram configuration (optional)
	TelegramBotToken string
	TelegramChatID   string

	// Health check server configuration
	HealthCheckPort string

	// Debug mode traces requests and simulates ticket closures from Telegram
	DebugMode bool
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse embedded .env file and set as fallback environment variables
//  2. Try to load external .env file (does not override the environment)
//  3. Read environment variables, applying defaults for missing values
//  4. Validate
//
// Returns:
//   - *Config: Fully populated configuration struct
//   - error: Validation error if a value is unusable
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if _, set := os.LookupEnv(k); !set {
				os.Setenv(k, v)
			}
		}
	}

	cfg := &Config{
		BaseURL: strings.TrimRight(getEnvOrDefault("CALLCENTER_BASE_URL", DefaultBaseURL), "/"),
		LoginID: int64(getEnvInt("CALLCENTER_LOGIN_ID", 2892)),

		Username: os.Getenv("CALLCENTER_USERNAME"),
		Password: os.Getenv("CALLCENTER_PASSWORD"),

		StatePath: getEnvOrDefault("STATE_PATH", "callcenter.db"),

		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		PageSize:       getEnvInt("PAGE_SIZE", 10),
		MaxPages:       getEnvInt("MAX_PAGES", 5),
		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 5),

		FetchInterval:   getEnvDuration("FETCH_INTERVAL", 15*time.Minute),
		MaxLoginRetries: getEnvInt("MAX_LOGIN_RETRIES", 3),
		LoginRetryDelay: getEnvDuration("LOGIN_RETRY_DELAY", 5*time.Second),

		TelegramBotToken: os.Getenv("CALLCENTER_TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("CALLCENTER_TELEGRAM_CHAT_ID"),

		HealthCheckPort: getEnvOrDefault("HEALTH_CHECK_PORT", "8080"),
		DebugMode:       getEnvBool("DEBUG_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that values are sensible.
//
// Validation rules:
//   - BaseURL must be an absolute http(s) URL
//   - Page size, max pages and worker pool size must be at least 1
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("CALLCENTER_BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE must be at least 1, got %d", c.PageSize)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("MAX_PAGES must be at least 1, got %d", c.MaxPages)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("FETCH_INTERVAL must be positive, got %s", c.FetchInterval)
	}
	return nil
}

// ValidateCredentials checks the settings the unattended watch service
// needs to log in on its own.
func (c *Config) ValidateCredentials() error {
	if c.Username == "" {
		return fmt.Errorf("CALLCENTER_USERNAME environment variable is required")
	}
	if c.Password == "" {
		return fmt.Errorf("CALLCENTER_PASSWORD environment variable is required")
	}
	return nil
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default if not set/invalid
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
