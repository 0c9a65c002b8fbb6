package config

import "time"

// Client identities accepted by the backend.
const (
	IdentityDriver   = "driver-app"
	IdentityMechanic = "mechanic-app"
)

// EnvPrefix prefixes every environment override, e.g. GARAGELINK_API_BASE_URL.
const EnvPrefix = "GARAGELINK"

// Config is the full client configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Log     LogConfig     `mapstructure:"log"`
}

type AppConfig struct {
	Identity string `mapstructure:"identity" validate:"required,oneof=driver-app mechanic-app"`
	Version  string `mapstructure:"version"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=1s,lte=5m"`
	UserAgent string        `mapstructure:"user_agent"`
}

type AuthConfig struct {
	PreRefreshThreshold time.Duration `mapstructure:"pre_refresh_threshold" validate:"gte=0"`
	RefreshTimeout      time.Duration `mapstructure:"refresh_timeout" validate:"gt=0"`
	RevokeTimeout       time.Duration `mapstructure:"revoke_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	Path   string `mapstructure:"path" validate:"required"`
	Secret string `mapstructure:"secret"`
}

type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32        `mapstructure:"min_requests" validate:"gte=1"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}
