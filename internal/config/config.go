// Package config loads the daemon's Viper-backed configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings read at startup: one fixed set of fields
// populated by viper.Unmarshal.
type Config struct {
	ServerAddress  string          `mapstructure:"server_address"`
	LibraryDir     string          `mapstructure:"library_dir"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	DevMode        bool            `mapstructure:"dev_mode"`
	Logging        LoggingConfig   `mapstructure:"logging"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Defaults returns the Viper instance pre-populated with kpald's
// default settings; callers layer a config file and environment
// variables (prefix KPAL_, "." replaced by "_") on top before calling
// Load.
func Defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("server_address", ":8080")
	v.SetDefault("library_dir", "$HOME/.kpal/peripherals")
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("dev_mode", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("rate_limit.rps", 100)
	v.SetDefault("rate_limit.burst", 200)

	v.SetEnvPrefix("KPAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configPath (if non-empty) over the defaults and unmarshals
// the result into a Config.
func Load(v *viper.Viper, configPath string) (Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if home, err := os.UserHomeDir(); err == nil {
		cfg.LibraryDir = strings.ReplaceAll(cfg.LibraryDir, "$HOME", home)
	}
	cfg.LibraryDir = filepath.Clean(cfg.LibraryDir)

	return cfg, nil
}
