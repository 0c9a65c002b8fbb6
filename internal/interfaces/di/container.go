package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"garagelink.app/client/internal/application/api"
	"garagelink.app/client/internal/application/services"
	"garagelink.app/client/internal/auth"
	"garagelink.app/client/internal/core/ports"
	authinfra "garagelink.app/client/internal/infrastructure/auth"
	"garagelink.app/client/internal/infrastructure/config"
	httpinfra "garagelink.app/client/internal/infrastructure/http"
	"garagelink.app/client/internal/infrastructure/logging"
	"garagelink.app/client/internal/infrastructure/metrics"
	"garagelink.app/client/internal/infrastructure/storage"
)

// Container holds the one session object graph of the process.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Observability
	Registry *prometheus.Registry
	Metrics  *metrics.Auth

	// Storage
	Store  ports.KeyValueStore
	Tokens *authinfra.SlotTokenRepository

	// Auth
	Gateway     *authinfra.HTTPAuthGateway
	Validator   *auth.Validator
	Session     *services.SessionController
	Coordinator *services.RefreshCoordinator

	// Transport
	Breaker   *httpinfra.BreakerTransport
	Transport *httpinfra.AuthTransport
	API       *api.Client
}

// Option overrides a default component.
type Option func(*options)

type options struct {
	store         ports.KeyValueStore
	logger        *zap.Logger
	baseTransport http.RoundTripper
}

// WithStore replaces the encrypted file store, e.g. with a MemoryStore.
func WithStore(store ports.KeyValueStore) Option {
	return func(o *options) { o.store = store }
}

// WithLogger replaces the logger built from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBaseTransport replaces the pooled network transport under both the
// auth gateway and business traffic.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.baseTransport = rt }
}

// NewContainer builds the graph from cfg. The session is restored from
// storage before returning.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{Config: cfg}
	if err := c.initializeComponents(o); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	if err := c.Session.Restore(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initializeComponents(o options) error {
	cfg := c.Config

	// 1. Logging and metrics
	c.Logger = o.logger
	if c.Logger == nil {
		logger, err := logging.New(logging.Config{
			Level:   cfg.Log.Level,
			Pretty:  cfg.Log.Pretty,
			App:     cfg.App.Identity,
			Version: cfg.App.Version,
		})
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		c.Logger = logger
	}
	c.Registry = prometheus.NewRegistry()
	c.Metrics = metrics.NewAuth(c.Registry)

	// 2. Storage
	c.Store = o.store
	if c.Store == nil {
		fileStore, err := storage.NewFileStore(cfg.Storage.Path, cfg.Storage.Secret)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		c.Store = fileStore
	}
	c.Tokens = authinfra.NewSlotTokenRepository(c.Store)

	// 3. Network: the gateway gets the bare transport, business traffic goes
	// through the breaker.
	base := o.baseTransport
	if base == nil {
		base = httpinfra.NewBaseTransport(httpinfra.DefaultTransportConfig())
	}
	c.Gateway = authinfra.NewHTTPAuthGateway(authinfra.GatewayConfig{
		BaseURL:        cfg.API.BaseURL,
		ClientIdentity: cfg.App.Identity,
		UserAgent:      cfg.API.UserAgent,
		Timeout:        cfg.API.Timeout,
		Transport:      base,
	})

	businessBase := base
	if cfg.Breaker.Enabled {
		breakerCfg := httpinfra.DefaultBreakerConfig("business-api")
		breakerCfg.FailureRatio = cfg.Breaker.FailureRatio
		breakerCfg.MinRequests = cfg.Breaker.MinRequests
		breakerCfg.OpenTimeout = cfg.Breaker.OpenTimeout
		c.Breaker = httpinfra.NewBreakerTransport(base, breakerCfg, c.Logger.Named("breaker"), c.Metrics)
		businessBase = c.Breaker
	}

	// 4. Session and refresh
	c.Session = services.NewSessionController(c.Tokens, c.Gateway, services.SessionControllerConfig{
		RevokeTimeout: cfg.Auth.RevokeTimeout,
		Logger:        c.Logger.Named("session"),
		Metrics:       c.Metrics,
	})
	c.Coordinator = services.NewRefreshCoordinator(c.Tokens, c.Gateway, c.Session, services.RefreshCoordinatorConfig{
		Timeout:     cfg.Auth.RefreshTimeout,
		Logger:      c.Logger.Named("refresh"),
		Metrics:     c.Metrics,
		OnRefreshed: c.Session.MarkRefreshed,
	})
	c.Validator = auth.NewValidator(cfg.Auth.PreRefreshThreshold)

	// 5. Authenticated business client
	c.Transport = httpinfra.NewAuthTransport(businessBase, c.Tokens, c.Coordinator, c.Validator, httpinfra.AuthTransportConfig{
		ClientIdentity: cfg.App.Identity,
		Logger:         c.Logger.Named("transport"),
		Metrics:        c.Metrics,
	})
	c.API = api.NewClient(cfg.API.BaseURL, cfg.API.UserAgent, cfg.API.Timeout, c.Transport)

	c.Logger.Debug("container initialized",
		zap.String("identity", cfg.App.Identity),
		zap.String("base_url", cfg.API.BaseURL),
		zap.Bool("breaker", cfg.Breaker.Enabled),
	)
	return nil
}

// Shutdown waits for pending revokes until ctx is done and flushes the logger.
func (c *Container) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.Session.WaitForRevokes()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.Logger.Warn("shutdown before pending revokes finished")
	}
	_ = c.Logger.Sync()
	return nil
}
