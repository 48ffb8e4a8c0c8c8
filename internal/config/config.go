package config

import (
	"os"
	"strconv"

	"edupulse/domain/analytics"
	"edupulse/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Paths    PathConfig
	Engine   analytics.Config
	Seed     int64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	OpsPort string
	GinMode string
}

// DatabaseConfig holds database connection settings.
// The URL is optional: without it the postgres record provider is not
// constructed and the roster file (or synthetic data) is used instead.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	RosterFile    string // .xlsx student roster, optional
	ModelStoreDir string // trained model snapshots
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Paths:    loadPathConfig(),
		Engine:   loadEngineConfig(),
		Seed:     getEnvInt64OrDefault("ANALYTICS_SEED", 42),
	}

	if err := config.Engine.Validate(); err != nil {
		return nil, errors.Wrap(err, "engine configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		OpsPort: getEnvOrDefault("OPS_PORT", "6060"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadPathConfig() PathConfig {
	return PathConfig{
		RosterFile:    getEnvOrDefault("ROSTER_FILE", ""),
		ModelStoreDir: getEnvOrDefault("MODEL_STORE_DIR", "./models"),
	}
}

func loadEngineConfig() analytics.Config {
	cfg := analytics.DefaultConfig()
	cfg.RiskModel.LearningRate = getEnvFloatOrDefault("RISK_LEARNING_RATE", cfg.RiskModel.LearningRate)
	cfg.RiskModel.Epochs = getEnvIntOrDefault("RISK_EPOCHS", cfg.RiskModel.Epochs)
	cfg.RiskModel.BatchSize = getEnvIntOrDefault("RISK_BATCH_SIZE", cfg.RiskModel.BatchSize)
	cfg.RiskModel.ValidationSplit = getEnvFloatOrDefault("RISK_VALIDATION_SPLIT", cfg.RiskModel.ValidationSplit)
	cfg.Clustering.NumClusters = getEnvIntOrDefault("CLUSTER_COUNT", cfg.Clustering.NumClusters)
	cfg.Clustering.EmbeddingDimension = getEnvIntOrDefault("CLUSTER_EMBEDDING_DIM", cfg.Clustering.EmbeddingDimension)
	cfg.Pattern.AnomalyThreshold = getEnvFloatOrDefault("PATTERN_ANOMALY_THRESHOLD", cfg.Pattern.AnomalyThreshold)
	cfg.Pattern.TimeWindowDays = getEnvIntOrDefault("PATTERN_TIME_WINDOW_DAYS", cfg.Pattern.TimeWindowDays)
	return cfg
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
