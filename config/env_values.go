package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Environment struct {
	// Server configs
	IsDocker          bool
	Port              string
	Environment       string
	CorsAllowedOrigin string

	// Store access configs
	MaxPageSize           int
	SchemaSampleSize      int
	ConnectTimeoutSeconds int
	MaxReferenceProbes    int
	MaxReferenceDepth     int
}

var Env Environment

// LoadEnv loads environment variables from .env file if present
// and validates required variables
func LoadEnv() error {
	// Check if running in Docker
	Env.IsDocker = os.Getenv("IS_DOCKER") == "true"

	// Load .env file only if not running in Docker
	if !Env.IsDocker {
		if err := godotenv.Load(); err != nil {
			fmt.Printf("Warning: .env file not found: %v\n", err)
		}
	}

	// Server configs
	Env.Port = getEnvWithDefault("PORT", "3000")
	Env.Environment = getEnvWithDefault("ENVIRONMENT", "DEVELOPMENT")
	Env.CorsAllowedOrigin = getEnvWithDefault("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	// Store access configs
	Env.MaxPageSize = getIntEnvWithDefault("MONGOLENS_MAX_PAGE_SIZE", 100)
	Env.SchemaSampleSize = getIntEnvWithDefault("MONGOLENS_SCHEMA_SAMPLE_SIZE", 100)
	Env.ConnectTimeoutSeconds = getIntEnvWithDefault("MONGOLENS_CONNECT_TIMEOUT_SECONDS", 10)
	Env.MaxReferenceProbes = getIntEnvWithDefault("MONGOLENS_MAX_REFERENCE_PROBES", 25)
	Env.MaxReferenceDepth = getIntEnvWithDefault("MONGOLENS_MAX_REFERENCE_DEPTH", 3)

	return validateConfig()
}

// Helper functions to get environment variables with defaults and validation
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(strValue)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s, using default: %d\n", key, defaultValue)
		return defaultValue
	}
	return value
}

func validateConfig() error {
	if Env.SchemaSampleSize <= 0 {
		return fmt.Errorf("MONGOLENS_SCHEMA_SAMPLE_SIZE must be positive, got: %d", Env.SchemaSampleSize)
	}
	if Env.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("MONGOLENS_CONNECT_TIMEOUT_SECONDS must be positive, got: %d", Env.ConnectTimeoutSeconds)
	}
	if Env.MaxReferenceProbes <= 0 {
		return fmt.Errorf("MONGOLENS_MAX_REFERENCE_PROBES must be positive, got: %d", Env.MaxReferenceProbes)
	}
	if Env.MaxReferenceDepth <= 0 {
		return fmt.Errorf("MONGOLENS_MAX_REFERENCE_DEPTH must be positive, got: %d", Env.MaxReferenceDepth)
	}
	return nil
}
