/*
Package configs is responsible for loading and parsing the application's configuration settings.

It reads operating system environment variables, optionally seeded from a .env file,
covering the running environment, port, allowed WebSocket origins, the inbound frame
size limit and the rate limits applied to upgrades and to frames on each connection.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvDevelopment is the default environment. It relaxes origin checks and enables debug logging.
const EnvDevelopment = "development"

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// Relay Settings
	MaxMessageSize int64
	MessageRate    float64
	MessageBurst   int
	UpgradeRate    float64
	UpgradeBurst   int
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. A missing file is not an error; it returns
// true when at least one file was loaded.
func LoadDotEnv(filenames ...string) (bool, error) {
	if err := godotenv.Load(filenames...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load .env file: %w", err)
	}
	return true, nil
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	// Port
	if cfg.Port, err = intEnv("PORT", 8080); err != nil {
		return nil, err
	}

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	// AllowedOrigins
	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	if !cfg.IsDevelopment() && len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS environment variable is required in %s environment", cfg.Environment)
	}

	// --- Relay Settings ---
	maxMessageSize, err := intEnv("MAX_MESSAGE_SIZE", 8192)
	if err != nil {
		return nil, err
	}
	if maxMessageSize <= 0 {
		return nil, fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", maxMessageSize)
	}
	cfg.MaxMessageSize = int64(maxMessageSize)

	if cfg.MessageRate, err = positiveFloatEnv("MESSAGE_RATE", 10); err != nil {
		return nil, err
	}
	if cfg.MessageBurst, err = positiveIntEnv("MESSAGE_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.UpgradeRate, err = positiveFloatEnv("UPGRADE_RATE", 1); err != nil {
		return nil, err
	}
	if cfg.UpgradeBurst, err = positiveIntEnv("UPGRADE_BURST", 10); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	v, err := intEnv(key, def)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

func positiveFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}
