package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Backend REST API
	APIBaseURL string
	APITimeout time.Duration

	// Wizard draft persistence
	WizardStore string // "memory" or "postgres"
	DatabaseUrl string // Required when WizardStore is "postgres"
	WizardTTL   time.Duration

	// RedirectDelay is how long the interstitial page shows its message
	// before navigating on.
	RedirectDelay time.Duration

	// SessionJWTSecret verifies backend token signatures when set
	SessionJWTSecret string

	// Storage Configuration (import archive)
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Endpoint        string // Optional, any S3-compatible endpoint

	ImportArchiveEnabled bool

	// Login throttling per client IP. Zero disables it.
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		APIBaseURL: getEnv("API_BASE_URL", "https://taqa.co.ke/api"),
		APITimeout: getEnvDuration("API_TIMEOUT", 30*time.Second),

		WizardStore: getEnv("WIZARD_STORE", "memory"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),
		WizardTTL:   getEnvDuration("WIZARD_TTL", 24*time.Hour),

		RedirectDelay: getEnvDuration("REDIRECT_DELAY", 2*time.Second),

		SessionJWTSecret: getEnv("SESSION_JWT_SECRET", ""),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		ImportArchiveEnabled: getEnvBool("IMPORT_ARCHIVE_ENABLED", false),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.WizardStore {
	case "memory":
	case "postgres":
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when WIZARD_STORE is 'postgres'")
		}
	default:
		return fmt.Errorf("WIZARD_STORE must be either 'memory' or 'postgres', got: %s", c.WizardStore)
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got: %s", c.APITimeout)
	}
	if c.WizardTTL <= 0 {
		return fmt.Errorf("WIZARD_TTL must be positive, got: %s", c.WizardTTL)
	}
	if c.RedirectDelay < 0 {
		return fmt.Errorf("REDIRECT_DELAY must not be negative, got: %s", c.RedirectDelay)
	}

	// Storage only matters when accepted imports are archived
	if !c.ImportArchiveEnabled {
		return nil
	}
	if c.StorageProvider == "r2" {
		if c.R2AccountID == "" && c.R2Endpoint == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if c.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("30s") and bare milliseconds ("2000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
