package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("CALLCENTER_BASE_URL", "http://localhost:9000/")
	t.Setenv("CALLCENTER_USERNAME", "testuser")
	t.Setenv("CALLCENTER_PASSWORD", "testpass")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("FETCH_INTERVAL", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9000", cfg.BaseURL)
	require.Equal(t, "testuser", cfg.Username)
	require.Equal(t, "testpass", cfg.Password)
	require.Equal(t, 25, cfg.PageSize)
	require.True(t, cfg.DebugMode)
	require.NoError(t, cfg.ValidateCredentials())

	// Defaults
	require.Equal(t, 15*time.Minute, cfg.FetchInterval)
	require.Equal(t, 3, cfg.MaxLoginRetries)
	require.EqualValues(t, 2892, cfg.LoginID)
	require.Equal(t, "8080", cfg.HealthCheckPort)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("MAX_PAGES", "0")
	_, err := LoadConfig()
	require.EqualError(t, err, "MAX_PAGES must be at least 1, got 0")
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{"env var set", "TEST_VAR", "default", "custom", "custom"},
		{"env var not set", "NONEXISTENT_VAR", "default", "", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			result := getEnvOrDefault(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("expected %q but got %q", tt.expected, result)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		expected     int
	}{
		{"valid int", "TEST_INT", 10, "25", 25},
		{"invalid int uses default", "TEST_INT_INVALID", 10, "notanumber", 10},
		{"empty uses default", "TEST_INT_EMPTY", 10, "", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			result := getEnvInt(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("expected %d but got %d", tt.expected, result)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "1")
	require.True(t, getEnvBool("TEST_BOOL", false))
	t.Setenv("TEST_BOOL", "maybe")
	require.True(t, getEnvBool("TEST_BOOL", true))
	os.Unsetenv("TEST_BOOL")
	require.False(t, getEnvBool("TEST_BOOL", false))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			BaseURL:        "https://example.com",
			PageSize:       10,
			MaxPages:       5,
			WorkerPoolSize: 2,
			FetchInterval:  time.Minute,
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		expectErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"empty base url", func(c *Config) { c.BaseURL = "" }, true},
		{"relative base url", func(c *Config) { c.BaseURL = "/api" }, true},
		{"ftp base url", func(c *Config) { c.BaseURL = "ftp://example.com" }, true},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, true},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected error but got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	require.EqualError(t, (&Config{Password: "p"}).ValidateCredentials(), "CALLCENTER_USERNAME environment variable is required")
	require.EqualError(t, (&Config{Username: "u"}).ValidateCredentials(), "CALLCENTER_PASSWORD environment variable is required")
}
