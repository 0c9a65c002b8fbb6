package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/ports"
	"garagelink.app/client/internal/infrastructure/metrics"
)

const refreshFlightKey = "refresh"

// DefaultRefreshTimeout bounds a single refresh round trip
const DefaultRefreshTimeout = 15 * time.Second

// RefreshState is the coordinator's observable state.
type RefreshState int32

const (
	RefreshIdle RefreshState = iota
	RefreshRefreshing
)

func (s RefreshState) String() string {
	if s == RefreshRefreshing {
		return "REFRESHING"
	}
	return "IDLE"
}

// RefreshCoordinatorConfig configures the coordinator
type RefreshCoordinatorConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Auth
	// OnRefreshed runs after a rotated pair is persisted. Returning false
	// means the session ended in the meantime and the pair is discarded.
	OnRefreshed func(domain.Credentials) bool
}

// RefreshCoordinator turns concurrent refresh requests into at most one
// network call. Callers that arrive while a refresh is in flight join it and
// receive the same outcome. It is the only writer of the credential pair
// after login.
type RefreshCoordinator struct {
	repo        ports.TokenRepository
	gateway     ports.AuthGateway
	invalidator ports.SessionInvalidator
	timeout     time.Duration
	logger      *zap.Logger
	metrics     *metrics.Auth
	onRefreshed func(domain.Credentials) bool

	group singleflight.Group
	state atomic.Int32
}

// NewRefreshCoordinator creates a coordinator
func NewRefreshCoordinator(
	repo ports.TokenRepository,
	gateway ports.AuthGateway,
	invalidator ports.SessionInvalidator,
	cfg RefreshCoordinatorConfig,
) *RefreshCoordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRefreshTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RefreshCoordinator{
		repo:        repo,
		gateway:     gateway,
		invalidator: invalidator,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		onRefreshed: cfg.OnRefreshed,
	}
}

// State reports whether a refresh is currently in flight
func (c *RefreshCoordinator) State() RefreshState {
	return RefreshState(c.state.Load())
}

// RequestRefresh returns a fresh access token, starting a refresh or joining
// the one in flight. Cancelling ctx stops this caller from waiting but never
// aborts the shared refresh.
func (c *RefreshCoordinator) RequestRefresh(ctx context.Context, staleToken string) (string, error) {
	led := false
	flightCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(refreshFlightKey, func() (any, error) {
		led = true
		return c.runFlight(flightCtx, staleToken)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if !led {
			c.metrics.ObserveJoin()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

type refreshResult struct {
	tokens *domain.RefreshedTokens
	err    error
}

func (c *RefreshCoordinator) runFlight(ctx context.Context, staleToken string) (string, error) {
	c.state.Store(int32(RefreshRefreshing))
	defer c.state.Store(int32(RefreshIdle))

	creds, err := c.repo.Read(ctx)
	if err != nil {
		return "", domain.NewAuthError(domain.KindRefreshTransport, "read stored credentials", err)
	}
	if creds == nil {
		c.logger.Warn("refresh requested without stored credentials")
		c.invalidator.Invalidate(ctx, domain.ReasonRefreshFailed)
		return "", domain.NewAuthError(domain.KindRefreshFailed, "no stored refresh token", nil)
	}

	// Another flight already rotated the pair since the caller read it.
	if staleToken != "" && creds.AccessToken != staleToken {
		c.metrics.ObserveRefresh(metrics.OutcomeSkipped, 0)
		return creds.AccessToken, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan refreshResult, 1)
	go func() {
		tokens, err := c.gateway.Refresh(callCtx, creds.RefreshToken)
		done <- refreshResult{tokens: tokens, err: err}
	}()

	var res refreshResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = refreshResult{err: domain.NewAuthError(domain.KindRefreshTransport, "refresh timed out", callCtx.Err())}
	}
	elapsed := time.Since(start)
	log := c.logger.With(zap.String("user_id", creds.UserID), zap.Duration("elapsed", elapsed))

	if res.err != nil {
		if errors.Is(res.err, domain.ErrRefreshFailed) {
			c.metrics.ObserveRefresh(metrics.OutcomeRejected, elapsed.Seconds())
			log.Warn("refresh token rejected, invalidating session", zap.Error(res.err))
			c.invalidator.Invalidate(ctx, domain.ReasonRefreshFailed)
			return "", res.err
		}
		c.metrics.ObserveRefresh(metrics.OutcomeTransport, elapsed.Seconds())
		log.Warn("refresh failed in transport, session kept", zap.Error(res.err))
		return "", asTransportError(res.err)
	}

	next := domain.Credentials{
		AccessToken:  res.tokens.Token,
		RefreshToken: res.tokens.RefreshToken,
		UserID:       creds.UserID,
	}
	swapped, err := c.repo.CompareAndSwap(ctx, creds.RefreshToken, next)
	if err != nil {
		c.metrics.ObserveRefresh(metrics.OutcomeTransport, elapsed.Seconds())
		log.Error("failed to persist rotated credentials", zap.Error(err))
		return "", domain.NewAuthError(domain.KindRefreshTransport, "persist rotated credentials", err)
	}
	if !swapped {
		// The session was ended or replaced while the call was in flight.
		c.metrics.ObserveRefresh(metrics.OutcomeSkipped, elapsed.Seconds())
		current, err := c.repo.Read(ctx)
		if err != nil || current == nil {
			log.Info("session ended during refresh, discarding rotated credentials")
			return "", domain.NewAuthError(domain.KindRefreshFailed, "session ended during refresh", nil)
		}
		return current.AccessToken, nil
	}

	if c.onRefreshed != nil && !c.onRefreshed(next) {
		c.metrics.ObserveRefresh(metrics.OutcomeSkipped, elapsed.Seconds())
		log.Info("session ended after refresh was persisted, discarding rotated credentials")
		return "", domain.NewAuthError(domain.KindRefreshFailed, "session ended during refresh", nil)
	}

	c.metrics.ObserveRefresh(metrics.OutcomeSuccess, elapsed.Seconds())
	log.Info("access token refreshed")
	return next.AccessToken, nil
}

func asTransportError(err error) error {
	if errors.Is(err, domain.ErrRefreshTransport) {
		return err
	}
	return domain.NewAuthError(domain.KindRefreshTransport, "", err)
}

var _ ports.Refresher = (*RefreshCoordinator)(nil)
