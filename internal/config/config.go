// Package config loads sqlgraph settings from a YAML file, SQLGRAPH_*
// environment variables and built-in defaults, in increasing precedence
// from defaults to environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/sqlgraph/internal/dialect"
)

// EnvPrefix prefixes every environment override, e.g. SQLGRAPH_DATABASE_PATH.
const EnvPrefix = "SQLGRAPH"

// Config is the full sqlgraph configuration.
type Config struct {
	Database struct {
		Path         string        `mapstructure:"path"`
		Dialect      string        `mapstructure:"dialect"`
		MaxOpenConns int           `mapstructure:"max_open_conns"`
		BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
	} `mapstructure:"database"`

	Topology struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"topology"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("database.path", "sqlgraph.db")
	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("topology.poll_interval", time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, if any, into v and decodes it.
// An empty path uses defaults and environment only.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if d, err := dialect.ForName(c.Database.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("database.dialect: %w", err))
	} else if d.Name() != "sqlite" {
		errs = append(errs, fmt.Errorf("database.dialect %q has no live driver, only sqlite can be opened", c.Database.Dialect))
	}
	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns))
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("database.busy_timeout must not be negative, got %s", c.Database.BusyTimeout))
	}
	if c.Topology.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("topology.poll_interval must be positive, got %s", c.Topology.PollInterval))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}
