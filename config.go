package gozk

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the ambient configuration for a Client, loadable from a
// YAML/JSON/TOML file or environment variables via viper.
type Config struct {
	Host         string       `mapstructure:"host"`
	Port         int          `mapstructure:"port"`
	Inport       int          `mapstructure:"inport"`
	TimeoutMs    int          `mapstructure:"timeoutMs"`
	Logger       LoggerConfig `mapstructure:"logger"`
}

// Timeout returns the configured per-command timeout as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DefaultConfig returns the conventional defaults for a ZK-protocol
// terminal: device port 4370, a 3s per-command timeout, no fixed local
// UDP bind port (OS-assigned).
func DefaultConfig() Config {
	return Config{
		Port:      4370,
		Inport:    0,
		TimeoutMs: 3000,
		Logger:    LoggerConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path (any format viper supports by extension) and
// overlays GOZK_-prefixed environment variables on top, falling back to
// DefaultConfig for anything unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("GOZK")
	v.AutomaticEnv()
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("inport", cfg.Inport)
	v.SetDefault("timeoutMs", cfg.TimeoutMs)
	v.SetDefault("logger.level", cfg.Logger.Level)
	v.SetDefault("logger.format", cfg.Logger.Format)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("gozk: reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("gozk: decoding config: %w", err)
	}
	return cfg, nil
}
