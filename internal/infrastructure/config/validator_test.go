package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Identity: IdentityMechanic},
		API: APIConfig{BaseURL: "https://api.garagelink.app", Timeout: 30 * time.Second},
		Auth: AuthConfig{
			PreRefreshThreshold: 5 * time.Minute,
			RefreshTimeout:      15 * time.Second,
			RevokeTimeout:       5 * time.Second,
		},
		Storage: StorageConfig{Path: "/tmp/session.enc"},
		Breaker: BreakerConfig{Enabled: true, FailureRatio: 0.5, MinRequests: 5, OpenTimeout: 30 * time.Second},
		Log:     LogConfig{Level: "info"},
	}
}

func TestValidateAPIEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
		errMsg   string
	}{
		{name: "valid_https_endpoint", endpoint: "https://api.garagelink.app"},
		{name: "valid_http_localhost", endpoint: "http://localhost:8080"},
		{name: "valid_http_127_0_0_1", endpoint: "http://127.0.0.1:8080"},
		{name: "valid_endpoint_with_path", endpoint: "https://api.garagelink.app/v2"},
		{name: "empty_endpoint", endpoint: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "invalid_scheme", endpoint: "ftp://api.garagelink.app", wantErr: true, errMsg: "unsupported URL scheme"},
		{name: "missing_scheme", endpoint: "api.garagelink.app", wantErr: true, errMsg: "unsupported URL scheme"},
		{name: "missing_host", endpoint: "https://", wantErr: true, errMsg: "must include host"},
		{name: "plain_http_remote", endpoint: "http://api.garagelink.app", wantErr: true, errMsg: "only allowed for localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIEndpoint(tt.endpoint)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid"},
		{name: "unknown_identity", mutate: func(c *Config) { c.App.Identity = "web-app" }, wantField: "app.identity"},
		{name: "missing_base_url", mutate: func(c *Config) { c.API.BaseURL = "" }, wantField: "api.baseurl"},
		{name: "timeout_too_short", mutate: func(c *Config) { c.API.Timeout = 10 * time.Millisecond }, wantField: "api.timeout"},
		{name: "zero_refresh_timeout", mutate: func(c *Config) { c.Auth.RefreshTimeout = 0 }, wantField: "auth.refreshtimeout"},
		{name: "ratio_above_one", mutate: func(c *Config) { c.Breaker.FailureRatio = 1.5 }, wantField: "breaker.failureratio"},
		{name: "bad_log_level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantField: "log.level"},
		{name: "missing_storage_path", mutate: func(c *Config) { c.Storage.Path = "" }, wantField: "storage.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			err := Validate(cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields(), tt.wantField)
		})
	}
}

func TestValidate_RejectsRemotePlainHTTP(t *testing.T) {
	cfg := validConfig()
	cfg.API.BaseURL = "http://api.garagelink.app"

	err := Validate(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "only allowed for localhost")
}
