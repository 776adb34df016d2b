package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnv returns the value of an environment variable or a default value if not set.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvironment returns the current environment, defaulting to development.
func GetEnvironment() string {
	return strings.ToLower(GetEnv(EnvPrefix+"_SERVER_ENVIRONMENT", EnvDevelopment))
}

// IsProduction returns true if running in production environment.
func IsProduction() bool {
	return GetEnvironment() == EnvProduction
}

// IsProductionLike returns true if running in staging or production environment.
func IsProductionLike() bool {
	return isProductionLike(GetEnvironment())
}

func isProductionLike(environment string) bool {
	return environment == EnvStaging || environment == EnvProduction
}

// loadDotEnv loads .env.<environment> when present, falling back to .env.
// Variables already set in the process environment win over file values.
// Missing files are not an error.
func loadDotEnv(environment string) error {
	candidates := []string{".env." + environment, ".env"}
	for _, file := range candidates {
		err := godotenv.Load(file)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
