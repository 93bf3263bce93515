// Package config reads configuration from environment variables, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if one is present. Missing files are fine;
// deployed environments set real variables.
func Load() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded, using environment variables")
	}
}

// GetEnv returns the value of key, or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback when unset
// or unparsable.
func GetEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of key (Go duration
// syntax, e.g. "1s", "5m"), or fallback when unset or unparsable.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
