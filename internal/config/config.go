// Package config loads host settings and the user preferences file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	defaultAddr        = ":8080"
	defaultDBPath      = "crabnews.db"
	defaultConcurrency = 4
)

var validate = validator.New()

// Config holds runtime settings for the host process.
type Config struct {
	Addr             string `validate:"required"`
	DBPath           string `validate:"required_without=DatabaseURL"`
	DatabaseURL      string `validate:"omitempty,url"`
	ExportDir        string `validate:"required"`
	PreferencesPath  string `validate:"required"`
	FetchConcurrency int    `validate:"gte=1,lte=32"`
}

// LoadFromEnv reads CRABNEWS_* variables, filling defaults for unset ones.
// The result is not validated; callers apply their overrides and then call
// Validate.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:            os.Getenv("CRABNEWS_ADDR"),
		DBPath:          os.Getenv("CRABNEWS_DB"),
		DatabaseURL:     os.Getenv("CRABNEWS_DATABASE_URL"),
		ExportDir:       os.Getenv("CRABNEWS_EXPORT_DIR"),
		PreferencesPath: os.Getenv("CRABNEWS_PREFERENCES"),
	}

	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.DBPath == "" && cfg.DatabaseURL == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "."
	}
	if cfg.PreferencesPath == "" {
		path, err := DefaultPreferencesPath()
		if err != nil {
			return Config{}, err
		}
		cfg.PreferencesPath = path
	}

	cfg.FetchConcurrency = defaultConcurrency
	if v := os.Getenv("CRABNEWS_FETCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("CRABNEWS_FETCH_CONCURRENCY must be a number: %s", v)
		}
		cfg.FetchConcurrency = n
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultPreferencesPath is preferences.toml under the user config directory.
func DefaultPreferencesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "crabnews", "preferences.toml"), nil
}
