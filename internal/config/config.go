// Package config loads the settings of the revisionable command.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Drivers supported by the command.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
)

// Config holds the command configuration.
type Config struct {
	Driver        string
	DSN           string
	Table         string
	BoltPath      string
	ContextColumn bool
	LogLevel      slog.Level
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Driver:        DriverPostgres,
		Table:         "revisions",
		BoltPath:      "revisions.bolt",
		ContextColumn: true,
		LogLevel:      slog.LevelInfo,
	}
}

// Load reads revisionable.yaml from dir, if present, and applies
// REVISIONABLE_* environment overrides on top of the defaults.
func Load(dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("revisionable")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("REVISIONABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("driver", cfg.Driver)
	v.SetDefault("table", cfg.Table)
	v.SetDefault("bolt.path", cfg.BoltPath)
	v.SetDefault("context_column", cfg.ContextColumn)
	v.SetDefault("log.level", cfg.LogLevel.String())
	_ = v.BindEnv("dsn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: failed to read: %w", err)
		}
	}

	cfg.Driver = strings.ToLower(v.GetString("driver"))
	cfg.DSN = v.GetString("dsn")
	cfg.Table = v.GetString("table")
	cfg.BoltPath = v.GetString("bolt.path")
	cfg.ContextColumn = v.GetBool("context_column")
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("config: invalid log level: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configured driver has what it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
		if c.DSN == "" {
			return fmt.Errorf("config: dsn is required for driver %q", c.Driver)
		}
	case DriverBolt:
		if c.BoltPath == "" {
			return errors.New("config: bolt.path is required for driver \"bolt\"")
		}
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if strings.TrimSpace(c.Table) == "" {
		return errors.New("config: table must not be empty")
	}
	return nil
}
