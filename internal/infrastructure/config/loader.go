package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "garagelink.yaml"
	}
	return filepath.Join(home, ".config", "garagelink", "config.yaml")
}

// FlagBindings maps config keys to command-line flag names.
var FlagBindings = map[string]string{
	"app.identity": "identity",
	"api.base_url": "api-url",
	"log.level":    "log-level",
	"log.pretty":   "pretty",
}

// Load reads defaults, the optional YAML file at path, GARAGELINK_* env and
// any bound flags, in increasing priority, then validates the result.
// A missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("app.identity", IdentityDriver)
	v.SetDefault("app.version", "dev")

	v.SetDefault("api.base_url", "https://api.garagelink.app")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.user_agent", "GarageLink-CLI/1.0")

	v.SetDefault("auth.pre_refresh_threshold", "5m")
	v.SetDefault("auth.refresh_timeout", "15s")
	v.SetDefault("auth.revoke_timeout", "5s")

	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("storage.secret", "")

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failure_ratio", 0.5)
	v.SetDefault("breaker.min_requests", 5)
	v.SetDefault("breaker.open_timeout", "30s")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", false)

	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Path = expandPath(cfg.Storage.Path)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "garagelink", "session.enc")
	}
	return filepath.Join(home, ".config", "garagelink", "session.enc")
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
