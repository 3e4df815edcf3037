package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration for the mempool engine.
type Config struct {
	// Logging
	LogLevel string
	LogFile  string

	// Database
	DataDir string

	Mempool MempoolConfig
}

// MempoolConfig holds the admission and eviction policy knobs the
// mempool engine reads at startup.
type MempoolConfig struct {
	MaxSize          int64
	MaxOrphans       int
	MaxAncestors     int
	MinRelayTxFee    int64
	FreeTxRelayLimit int64
	ExpiryTime       time.Duration
	RequireStandard  bool
	ReplaceByFee     bool
	RejectAbsurdFees bool
	RelayPriority    bool
	IndexAddress     bool
	CacheFlushPeriod time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		DataDir: getEnv("DATA_DIR", "."),

		Mempool: MempoolConfig{
			MaxSize:          getEnvInt64("MEMPOOL_MAX_SIZE", 300*1024*1024),
			MaxOrphans:       getEnvInt("MEMPOOL_MAX_ORPHANS", 100),
			MaxAncestors:     getEnvInt("MEMPOOL_MAX_ANCESTORS", 25),
			MinRelayTxFee:    getEnvInt64("MEMPOOL_MIN_RELAY_FEE", 1000),
			FreeTxRelayLimit: getEnvInt64("MEMPOOL_FREE_RELAY_LIMIT", 15),
			ExpiryTime:       getEnvDuration("MEMPOOL_EXPIRY", 336*time.Hour),
			RequireStandard:  getEnvBool("MEMPOOL_REQUIRE_STANDARD", true),
			ReplaceByFee:     getEnvBool("MEMPOOL_REPLACE_BY_FEE", false),
			RejectAbsurdFees: getEnvBool("MEMPOOL_REJECT_ABSURD_FEES", true),
			RelayPriority:    getEnvBool("MEMPOOL_RELAY_PRIORITY", false),
			IndexAddress:     getEnvBool("MEMPOOL_INDEX_ADDRESS", false),
			CacheFlushPeriod: getEnvDuration("MEMPOOL_CACHE_FLUSH_PERIOD", 10*time.Second),
		},
	}
}

// getEnv gets an environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int or returns default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 gets an environment variable as int64 or returns default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool or returns default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as duration or returns default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
