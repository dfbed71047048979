package config

import (
	"os"
	"strconv"
	"time"
)

// Runtime represents process-level settings read from the environment
type Runtime struct {
	// State file
	StateFile string

	// Memcache configuration; empty selects the in-process cache
	MemcacheAddr string

	// Redis configuration; empty RedisAddr disables stream publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int64

	// Fetch configuration
	FetchConcurrency int
	FetchBlockTime   time.Duration

	// Metrics endpoint, daemon mode only
	MetricsAddr string

	// Environment
	Environment string
}

// LoadRuntime loads the runtime configuration from environment variables with defaults
func LoadRuntime() *Runtime {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxLength, _ := strconv.ParseInt(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"), 10, 64)
	concurrency, _ := strconv.Atoi(getEnv("FETCH_CONCURRENCY", "4"))
	blockSeconds, _ := strconv.Atoi(getEnv("FETCH_BLOCK_SECONDS", "300"))

	if concurrency < 1 {
		concurrency = 1
	}

	return &Runtime{
		StateFile:            getEnv("PT_STATE_FILE", "prices_state.json"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "pricewatch:alerts"),
		RedisStreamMaxLength: maxLength,
		FetchConcurrency:     concurrency,
		FetchBlockTime:       time.Duration(blockSeconds) * time.Second,
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
