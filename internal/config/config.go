// Package config loads rollbook settings.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file, then ROLLBOOK_* environment variables. A double
// underscore in a variable name separates nesting levels, so
// ROLLBOOK_DATABASE__PATH sets database.path. A .env file is loaded into
// the environment first when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/rollbook/internal/record"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "ROLLBOOK_"

// DotEnvFile is loaded from the working directory when present.
const DotEnvFile = ".env"

// Config is the full set of settings.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type AuthConfig struct {
	BcryptCost   int         `koanf:"bcrypt_cost" validate:"omitempty,min=4,max=31"` // 0 = bcrypt default
	DefaultAdmin AdminConfig `koanf:"default_admin"`
}

type AdminConfig struct {
	Username string `koanf:"username" validate:"required"`
	Password string `koanf:"password" validate:"required"`
}

var defaults = map[string]any{
	"database.path":               "student.db",
	"log.level":                   "info",
	"log.format":                  "text",
	"auth.bcrypt_cost":            0,
	"auth.default_admin.username": "admin",
	"auth.default_admin.password": "admin",
}

// Load reads configuration from path (skipped when empty) and the environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := record.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps ROLLBOOK_AUTH__BCRYPT_COST to auth.bcrypt_cost.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// loadDotEnv loads path into the environment if it exists.
// Variables already set are not overwritten.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SlogLevel converts the configured level name.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
