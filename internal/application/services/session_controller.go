package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"garagelink.app/client/internal/auth"
	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/ports"
	"garagelink.app/client/internal/infrastructure/metrics"
)

// DefaultRevokeTimeout bounds the best-effort server-side logout
const DefaultRevokeTimeout = 5 * time.Second

// SessionControllerConfig configures the session controller
type SessionControllerConfig struct {
	RevokeTimeout time.Duration
	Logger        *zap.Logger
	Metrics       *metrics.Auth
}

// SessionController owns the authenticated flag. It is the single place a
// session is ended.
type SessionController struct {
	repo          ports.TokenRepository
	gateway       ports.AuthGateway
	revokeTimeout time.Duration
	logger        *zap.Logger
	metrics       *metrics.Auth

	mu            sync.Mutex
	authenticated bool
	observers     map[int]ports.SessionObserver
	nextObserver  int

	revokes sync.WaitGroup
}

// NewSessionController creates an unauthenticated controller. Call Restore
// on process start.
func NewSessionController(repo ports.TokenRepository, gateway ports.AuthGateway, cfg SessionControllerConfig) *SessionController {
	if cfg.RevokeTimeout <= 0 {
		cfg.RevokeTimeout = DefaultRevokeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SessionController{
		repo:          repo,
		gateway:       gateway,
		revokeTimeout: cfg.RevokeTimeout,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		observers:     make(map[int]ports.SessionObserver),
	}
}

// Restore marks the session authenticated when a stored pair has a
// well-formed access token. Expiry is not checked here: the first call goes
// through the normal refresh path.
func (s *SessionController) Restore(ctx context.Context) error {
	creds, err := s.repo.Read(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if creds == nil {
		s.authenticated = false
		s.logger.Debug("no stored credentials, starting unauthenticated")
		return nil
	}
	if _, err := auth.Decode(creds.AccessToken); err != nil {
		s.authenticated = false
		s.logger.Warn("stored access token is malformed, starting unauthenticated", zap.String("user_id", creds.UserID))
		return nil
	}

	s.authenticated = true
	s.logger.Info("session restored", zap.String("user_id", creds.UserID))
	return nil
}

// Login exchanges email and password for credentials and starts a session.
func (s *SessionController) Login(ctx context.Context, email, password string) (*domain.User, error) {
	result, err := s.gateway.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.LoginWithCredentials(ctx, result.Credentials()); err != nil {
		return nil, err
	}
	if err := s.repo.WriteUser(ctx, result.User); err != nil {
		s.logger.Warn("failed to cache user record", zap.Error(err))
	}
	return &result.User, nil
}

// LoginWithCredentials stores an already obtained pair and starts a session.
func (s *SessionController) LoginWithCredentials(ctx context.Context, creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Write(ctx, creds); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.authenticated = true
	s.logger.Info("logged in", zap.String("user_id", creds.UserID))
	return nil
}

// MarkRefreshed records that a refresh produced a valid pair, which
// authenticates a session restored from a malformed access token. It reports
// false when creds is no longer the stored pair, i.e. the session was ended
// after the pair was persisted, and leaves the flag alone.
func (s *SessionController) MarkRefreshed(creds domain.Credentials) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.repo.Read(context.Background())
	if err != nil {
		s.logger.Warn("failed to read credentials after refresh", zap.Error(err))
		return false
	}
	if stored == nil || stored.RefreshToken != creds.RefreshToken {
		s.logger.Info("session ended during refresh", zap.String("user_id", creds.UserID))
		return false
	}
	if !s.authenticated {
		s.logger.Info("session recovered by refresh", zap.String("user_id", creds.UserID))
	}
	s.authenticated = true
	return true
}

// Logout ends the session locally and revokes the refresh token on the
// server without waiting for it. Revoke failures are only logged.
func (s *SessionController) Logout(ctx context.Context) {
	creds, err := s.repo.Read(ctx)
	if err != nil {
		s.logger.Warn("failed to read credentials before logout", zap.Error(err))
	}

	s.Invalidate(ctx, domain.ReasonLogout)

	if creds == nil || s.gateway == nil {
		return
	}

	s.revokes.Add(1)
	go func(refreshToken string) {
		defer s.revokes.Done()
		revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.revokeTimeout)
		defer cancel()
		if err := s.gateway.Revoke(revokeCtx, refreshToken); err != nil {
			s.logger.Warn("server-side revoke failed", zap.Error(err))
		}
	}(creds.RefreshToken)
}

// WaitForRevokes blocks until pending fire-and-forget revokes finish. The
// CLI calls it before exiting so the request is not cut off.
func (s *SessionController) WaitForRevokes() {
	s.revokes.Wait()
}

// Invalidate clears stored credentials, flips to unauthenticated and
// notifies observers. Calling it on an unauthenticated session is a no-op.
func (s *SessionController) Invalidate(ctx context.Context, reason domain.InvalidationReason) {
	s.mu.Lock()
	if err := s.repo.Clear(ctx); err != nil {
		s.logger.Error("failed to clear credentials", zap.Error(err))
	}
	if !s.authenticated {
		s.mu.Unlock()
		return
	}
	s.authenticated = false
	observers := make([]ports.SessionObserver, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	s.metrics.ObserveInvalidation(string(reason))
	s.logger.Info("session invalidated", zap.String("reason", string(reason)))

	for _, fn := range observers {
		fn(reason)
	}
}

// Subscribe registers fn to run once per invalidation. The returned func
// removes it.
func (s *SessionController) Subscribe(fn ports.SessionObserver) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// IsAuthenticated reports the current flag
func (s *SessionController) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// State returns a snapshot of the session
func (s *SessionController) State(ctx context.Context) (domain.SessionState, error) {
	s.mu.Lock()
	authenticated := s.authenticated
	s.mu.Unlock()

	if !authenticated {
		return domain.SessionState{}, nil
	}
	creds, err := s.repo.Read(ctx)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("session state: %w", err)
	}
	return domain.SessionState{Authenticated: creds != nil, Credentials: creds}, nil
}

var _ ports.SessionInvalidator = (*SessionController)(nil)
