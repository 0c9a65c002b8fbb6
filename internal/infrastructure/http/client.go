package httpinfra

import (
	"net"
	"net/http"
	"time"
)

// TransportConfig tunes the pooled base transport.
type TransportConfig struct {
	MaxConnsPerHost int
	DialTimeout     time.Duration
}

// DefaultTransportConfig returns the defaults for the shared base transport.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxConnsPerHost: 32,
		DialTimeout:     10 * time.Second,
	}
}

// NewBaseTransport builds the connection-pooling transport both the auth
// gateway and the business client sit on.
func NewBaseTransport(cfg TransportConfig) *http.Transport {
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultTransportConfig().MaxConnsPerHost
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultTransportConfig().DialTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
