package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the engine.
type Config struct {
	DatabaseURL string
	ServerPort  int

	// Background generation pool.
	GenerationWorkers    int
	GenerationQueueSize  int
	GenerationMaxRetries int
	// Cohorts at or above this size are generated in the background pool
	// instead of on the request path.
	AsyncGenerationThreshold int

	// How often draft tournaments past their start date are swept.
	AutoStartInterval time.Duration
}

// Load reads configuration from the environment, optionally loading a .env
// file first. Missing DATABASE_URL is the only fatal condition; everything
// else has a working default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	workers, err := intEnv("GENERATION_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	queueSize, err := intEnv("GENERATION_QUEUE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	maxRetries, err := intEnv("GENERATION_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	asyncThreshold, err := intEnv("ASYNC_GENERATION_THRESHOLD", 64)
	if err != nil {
		return nil, err
	}
	sweepSeconds, err := intEnv("AUTO_START_INTERVAL_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:              dbURL,
		ServerPort:               port,
		GenerationWorkers:        workers,
		GenerationQueueSize:      queueSize,
		GenerationMaxRetries:     maxRetries,
		AsyncGenerationThreshold: asyncThreshold,
		AutoStartInterval:        time.Duration(sweepSeconds) * time.Second,
	}, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return value, nil
}
