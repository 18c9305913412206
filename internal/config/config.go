// Package config loads geobrowser configuration from config.yaml, .env and
// GEOBROWSER_* environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Allocator AllocatorConfig `yaml:"allocator" mapstructure:"allocator"`
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the two datasets the browser loads at startup.
type DataConfig struct {
	ElectoralURL         string `yaml:"electoral_url" mapstructure:"electoral_url"`
	BoundaryURL          string `yaml:"boundary_url" mapstructure:"boundary_url"`
	BoundaryNameProperty string `yaml:"boundary_name_property" mapstructure:"boundary_name_property"`
	BoundaryFormat       string `yaml:"boundary_format" mapstructure:"boundary_format"`
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the fetch timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SessionTTLMins  int      `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
	MaxSessions     int      `yaml:"max_sessions" mapstructure:"max_sessions"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// SessionTTL returns the idle session lifetime.
func (c ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMins) * time.Minute
}

// MatchConfig selects how districts are matched to boundary features.
type MatchConfig struct {
	Strategy         string `yaml:"strategy" mapstructure:"strategy"`
	ProvinceFallback bool   `yaml:"province_fallback" mapstructure:"province_fallback"`
}

// AllocatorConfig configures budget allocation.
type AllocatorConfig struct {
	DefaultBudget int64 `yaml:"default_budget" mapstructure:"default_budget"`
}

// BackendConfig configures the data-connection backend client.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the backend request timeout.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory is loaded first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOBROWSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.electoral_url", "formatted_electoral_data.json")
	v.SetDefault("data.boundary_url", "")
	v.SetDefault("data.boundary_name_property", "name")
	v.SetDefault("data.boundary_format", "")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 1)
	v.SetDefault("fetch.user_agent", "geobrowser/1.0")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geobrowser.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_ttl_mins", 60)
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("match.strategy", "exact")
	v.SetDefault("match.province_fallback", false)
	v.SetDefault("allocator.default_budget", 100000)
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres, got "+quote(c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for postgres")
	}
	switch c.Match.Strategy {
	case "exact", "fold":
	default:
		problems = append(problems, "match.strategy must be exact or fold, got "+quote(c.Match.Strategy))
	}
	switch c.Data.BoundaryFormat {
	case "", "geojson", "wkt_csv":
	default:
		problems = append(problems, "data.boundary_format must be geojson or wkt_csv, got "+quote(c.Data.BoundaryFormat))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Server.MaxSessions < 0 {
		problems = append(problems, "server.max_sessions must not be negative")
	}
	if c.Server.SessionTTLMins < 0 {
		problems = append(problems, "server.session_ttl_mins must not be negative")
	}
	if c.Allocator.DefaultBudget < 0 {
		problems = append(problems, "allocator.default_budget must not be negative")
	}
	if c.Fetch.MaxRetries < 0 {
		problems = append(problems, "fetch.max_retries must not be negative")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
