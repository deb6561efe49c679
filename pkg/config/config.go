// Package config loads settings from defaults, an optional config file, .env and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TASK_TRACKER_STORE_DRIVER.
const EnvPrefix = "TASK_TRACKER"

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Store    StoreConfig    `mapstructure:"store"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DataConfig locates the flat files.
type DataConfig struct {
	TasksFile    string `mapstructure:"tasks_file"`
	AccountsFile string `mapstructure:"accounts_file"`
	ReportsDir   string `mapstructure:"reports_dir"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ReminderConfig controls the reminder poller.
type ReminderConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig controls logging. An empty File logs to stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Address    string        `mapstructure:"address"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	AllowGuest bool          `mapstructure:"allow_guest"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`
}

// Load reads configuration. path may be empty, in which case only defaults, .env and the environment
// are used.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.tasks_file", "tasks.json")
	v.SetDefault("data.accounts_file", "users.json")
	v.SetDefault("data.reports_dir", "reports")

	v.SetDefault("store.driver", DriverJSON)
	v.SetDefault("store.sqlite_path", "tasks.sqlite")

	v.SetDefault("reminder.interval", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "task-tracker.log")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", "24h")
	v.SetDefault("server.allow_guest", true)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
}

// Validate checks values that can't be used as configured.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverJSON, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver '%s'", c.Store.Driver)
	}

	if c.Reminder.Interval <= 0 {
		return fmt.Errorf("reminder interval must be positive, got %s", c.Reminder.Interval)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.Log.Level, err)
	}

	if c.Server.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.Server.TokenTTL)
	}

	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}

	return level
}
