// Package config loads the application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Recon    ReconConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string
}

// LoggerConfig holds structured-logging options.
type LoggerConfig struct {
	Level string
}

// ReconConfig holds the conservation-sweep scheduler settings.
type ReconConfig struct {
	// CronSchedule is a standard 5-field cron expression. Empty disables
	// the scheduled sweep.
	CronSchedule string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from
		// the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("HTTP_PORT", "8080"),
			CORSOrigins: getenvSlice("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Path: getenvWithDefault("DB_PATH", "./stock.db"),
		},
		Logger: LoggerConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Recon: ReconConfig{
			CronSchedule: getenvWithDefault("RECON_SCHEDULE", "0 2 * * *"),
		},
	}
	return cfg, nil
}

func getenvWithDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getenvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
