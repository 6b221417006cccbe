package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nixxel-company-limited/escpos-print-queue/adapter"
)

// Config is the full process configuration, built once at startup and
// passed by value into the components that need it.
type Config struct {
	// Transport selects the adapter variant: usb, serial or simulated.
	Transport string `mapstructure:"transport"`
	// DeviceAddress is the transport address: VID:PID for usb (empty for
	// auto-detect), a device path for serial.
	DeviceAddress string `mapstructure:"device_address"`
	Baud          int    `mapstructure:"baud"`

	MaxRetries         int `mapstructure:"max_retries"`
	RetryDelayMs       int `mapstructure:"retry_delay_ms"`
	SimulatedLatencyMs int `mapstructure:"simulated_latency_ms"`

	HTTPAddress string `mapstructure:"http_address"`
	// TCPAddress enables the raw port listener when non-empty.
	TCPAddress string `mapstructure:"tcp_address"`
	AuthToken  string `mapstructure:"auth_token"`
	LogLevel   string `mapstructure:"log_level"`
}

// RetryDelay returns the retry delay as a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Load reads configuration from PRINTQ_* environment variables, falling
// back to an optional config.yaml in the working directory, then to
// defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRINTQ")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("transport", adapter.TransportSimulated)
	v.SetDefault("device_address", "")
	v.SetDefault("baud", adapter.DefaultBaud)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay_ms", 500)
	v.SetDefault("simulated_latency_ms", 50)
	v.SetDefault("http_address", "localhost:8080")
	v.SetDefault("tcp_address", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c Config) Validate() error {
	switch c.Transport {
	case adapter.TransportUSB, adapter.TransportSimulated:
	case adapter.TransportSerial:
		if c.DeviceAddress == "" {
			return fmt.Errorf("serial transport requires device_address")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must not be negative, got %d", c.RetryDelayMs)
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("http_address must not be empty")
	}
	return nil
}
