package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	TablePrefix string

	// Storage
	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseURL    string
	SQLitePath     string

	// Auth
	JWKSURL    string // Empty = dev auth (X-Owner-ID header / DevOwnerID)
	DevOwnerID string

	// Allocation
	LockTimeout               time.Duration
	AllocationMaxRetries      int
	AllocationRetryMaxElapsed time.Duration

	// Logging
	LogDir      string // Empty = stdout only
	LogMaxFiles int

	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		DatabaseDriver: getEnv("DATABASE_DRIVER", DriverPostgres),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "lineage.db"),

		JWKSURL:    getEnv("JWKS_URL", ""),
		DevOwnerID: getEnv("DEV_OWNER_ID", "00000000-0000-0000-0000-000000000001"),

		LockTimeout:               getDuration("LOCK_TIMEOUT", 2*time.Second),
		AllocationMaxRetries:      getInt("ALLOCATION_MAX_RETRIES", 3),
		AllocationRetryMaxElapsed: getDuration("ALLOCATION_RETRY_MAX_ELAPSED", 5*time.Second),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),

		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q (want %s or %s)", c.DatabaseDriver, DriverPostgres, DriverSQLite)
	}
	if c.AllocationMaxRetries < 0 {
		return fmt.Errorf("ALLOCATION_MAX_RETRIES must not be negative")
	}
	return nil
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt falls back to defaultValue when the variable is unset or not a number
func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

// getDuration accepts Go duration strings ("2s", "500ms")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
