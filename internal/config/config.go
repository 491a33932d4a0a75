package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	BatchPolicyAbort    = "abort"
	BatchPolicyContinue = "continue"
)

type Config struct {
	ServerPort         string
	StorageDriver      string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	Location           *time.Location
	RecentLimit        int
	BatchFailurePolicy string
	LogLevel           string
	AutoMigrate        bool
}

func LoadConfig() (*Config, error) {
	tz := getEnv("LEDGER_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", tz, err)
	}

	recentLimit, err := strconv.Atoi(getEnv("RECENT_LIMIT", "20"))
	if err != nil || recentLimit <= 0 {
		return nil, errors.New("RECENT_LIMIT must be a positive integer")
	}

	autoMigrate, err := strconv.ParseBool(getEnv("AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, errors.New("invalid AUTO_MIGRATE value")
	}

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		StorageDriver:      getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		Location:           loc,
		RecentLimit:        recentLimit,
		BatchFailurePolicy: getEnv("BATCH_FAILURE_POLICY", BatchPolicyAbort),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AutoMigrate:        autoMigrate,
	}

	// Validate required fields
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.BatchFailurePolicy != BatchPolicyAbort && cfg.BatchFailurePolicy != BatchPolicyContinue {
		return nil, fmt.Errorf("unknown BATCH_FAILURE_POLICY %q", cfg.BatchFailurePolicy)
	}

	return cfg, nil
}

// AbortOnStorageFailure reports whether a storage outage ends item processing for the batch.
func (c *Config) AbortOnStorageFailure() bool {
	return c.BatchFailurePolicy == BatchPolicyAbort
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
