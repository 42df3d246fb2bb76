package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Environment  string
	LogLevel     string
	LogFormat    string
	DataDir      string
	OutputDir    string
	SchemaDir    string
	DatabasePath string
	RandomSeed   int64
	MinCellN     int
	MinModelN    int
	MaxListRuns  int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		DataDir:      getEnv("DATA_DIR", "data"),
		OutputDir:    getEnv("OUTPUT_DIR", "output"),
		SchemaDir:    getEnv("SCHEMA_DIR", "configs/schemas"),
		DatabasePath: getEnv("DATABASE_PATH", "output/runs.db"),
		RandomSeed:   int64(getEnvAsInt("RANDOM_SEED", 42)),
		MinCellN:     getEnvAsInt("MIN_CELL_N", 30),
		MinModelN:    getEnvAsInt("MIN_MODEL_N", 100),
		MaxListRuns:  getEnvAsInt("MAX_LIST_RUNS", 50),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	if c.MinCellN < 1 {
		return fmt.Errorf("MIN_CELL_N must be positive, got %d", c.MinCellN)
	}
	if c.MinModelN < c.MinCellN {
		return fmt.Errorf("MIN_MODEL_N (%d) cannot be below MIN_CELL_N (%d)", c.MinModelN, c.MinCellN)
	}
	if c.MaxListRuns < 1 {
		return fmt.Errorf("MAX_LIST_RUNS must be positive, got %d", c.MaxListRuns)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
