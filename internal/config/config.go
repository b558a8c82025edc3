// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string `validate:"required"` // Base directory for the cache database (always absolute)
	UniverseFile    string // CSV universe used when the exchange listing is unavailable
	EODHDAPIKey     string
	AnthropicAPIKey string
	LogLevel        string `validate:"oneof=trace debug info warn warning error"`
	Port            int    `validate:"min=1,max=65535"`
	DevMode         bool
	Schedules       Schedules
	Policy          *Policy `validate:"required"`
}

// Schedules holds cron expressions (with seconds) for background jobs.
// An empty expression disables the job.
type Schedules struct {
	Screening    string
	CacheCleanup string
}

// Load reads configuration from environment variables, then applies the
// policy file named by SCREENER_CONFIG_FILE if set
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SCREENER_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		UniverseFile:    getEnv("SCREENER_UNIVERSE_FILE", filepath.Join(absDataDir, "universe.csv")),
		EODHDAPIKey:     getEnv("EODHD_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("SCREENER_PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		Schedules: Schedules{
			Screening:    getEnv("SCREENER_SCREENING_SCHEDULE", "0 30 16 * * MON-FRI"), // After the NSE close
			CacheCleanup: getEnv("SCREENER_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		},
		Policy: DefaultPolicy(),
	}

	if path := getEnv("SCREENER_CONFIG_FILE", ""); path != "" {
		if err := cfg.Policy.LoadFile(path); err != nil {
			return nil, err
		}
	}
	applyPolicyEnvOverrides(cfg.Policy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyPolicyEnvOverrides lets the most commonly tuned policy values be set
// without a policy file. The environment wins over the file.
func applyPolicyEnvOverrides(p *Policy) {
	p.Valuation.MaxForwardPE = getEnvAsFloat("SCREENER_MAX_FORWARD_PE", p.Valuation.MaxForwardPE)
	p.Valuation.MinMarketCapCrore = getEnvAsFloat("SCREENER_MIN_MARKET_CAP_CRORE", p.Valuation.MinMarketCapCrore)
	p.Valuation.MaxMarketCapCrore = getEnvAsFloat("SCREENER_MAX_MARKET_CAP_CRORE", p.Valuation.MaxMarketCapCrore)
	p.Pipeline.MaxConcurrency = getEnvAsInt("SCREENER_MAX_CONCURRENCY", p.Pipeline.MaxConcurrency)
	p.Pipeline.FetchRatings = getEnvAsBool("SCREENER_FETCH_RATINGS", p.Pipeline.FetchRatings)
	p.Sources.MinInterval = Duration(getEnvAsDuration("SCREENER_SOURCE_MIN_INTERVAL", time.Duration(p.Sources.MinInterval)))
	p.Sources.Timeout = Duration(getEnvAsDuration("SCREENER_SOURCE_TIMEOUT", time.Duration(p.Sources.Timeout)))
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Policy.Pipeline.FetchRatings && c.AnthropicAPIKey == "" {
		return errors.New("invalid configuration: credit ratings require ANTHROPIC_API_KEY")
	}
	return nil
}

// CacheDatabasePath returns the cache database file path
func (c *Config) CacheDatabasePath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
