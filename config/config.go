// Package config loads server settings from defaults, an optional YAML
// file, and SHIFTS_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Payroll  PayrollConfig  `mapstructure:"payroll"`
	Forecast ForecastConfig `mapstructure:"forecast"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimitConfig caps requests per client IP. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	// Path is the SQLite file, or ":memory:".
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PayrollConfig struct {
	FuturePeriods        int           `mapstructure:"future_periods"`
	HistoryPeriods       int           `mapstructure:"history_periods"`
	HorizonCheckInterval time.Duration `mapstructure:"horizon_check_interval"`
}

type ForecastConfig struct {
	LookbackDays      int     `mapstructure:"lookback_days"`
	DefaultHourlyRate float64 `mapstructure:"default_hourly_rate"`
}

// Load reads configuration. path may be empty, in which case config.yaml is
// looked up in ./config and the working directory; a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.rate_limit.rps", 20)
	v.SetDefault("server.rate_limit.burst", 40)

	v.SetDefault("db.path", "shifts.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("payroll.future_periods", 26)
	v.SetDefault("payroll.history_periods", 0)
	v.SetDefault("payroll.horizon_check_interval", "1h")

	v.SetDefault("forecast.lookback_days", 90)
	v.SetDefault("forecast.default_hourly_rate", 25.0)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SHIFTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("invalid config: db.path must not be empty")
	}
	if c.Payroll.FuturePeriods < 1 {
		return fmt.Errorf("invalid config: payroll.future_periods must be at least 1")
	}
	if c.Payroll.HistoryPeriods < 0 {
		return fmt.Errorf("invalid config: payroll.history_periods must not be negative")
	}
	if c.Forecast.LookbackDays < 7 {
		return fmt.Errorf("invalid config: forecast.lookback_days must be at least 7")
	}
	if c.Forecast.DefaultHourlyRate <= 0 {
		return fmt.Errorf("invalid config: forecast.default_hourly_rate must be positive")
	}
	return nil
}
