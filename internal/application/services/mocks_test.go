package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/testfixtures"
	authinfra "garagelink.app/client/internal/infrastructure/auth"
	"garagelink.app/client/internal/infrastructure/storage"
)

// MockAuthGateway is a testify mock of ports.AuthGateway
type MockAuthGateway struct {
	mock.Mock
}

func (m *MockAuthGateway) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoginResult), args.Error(1)
}

func (m *MockAuthGateway) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshedTokens, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshedTokens), args.Error(1)
}

func (m *MockAuthGateway) Revoke(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

// countingGateway answers refreshes through fn and counts them. Used where
// call counts matter more than argument matching.
type countingGateway struct {
	calls atomic.Int64
	fn    func(ctx context.Context, refreshToken string) (*domain.RefreshedTokens, error)
}

func (g *countingGateway) Login(context.Context, string, string) (*domain.LoginResult, error) {
	panic("not used")
}

func (g *countingGateway) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshedTokens, error) {
	g.calls.Add(1)
	return g.fn(ctx, refreshToken)
}

func (g *countingGateway) Revoke(context.Context, string) error { return nil }

func rotated() *domain.RefreshedTokens {
	return &domain.RefreshedTokens{
		Token:        testfixtures.ValidToken(),
		RefreshToken: testfixtures.NextRefreshToken(),
	}
}

// recordingInvalidator records reasons and clears the repository like the
// real session controller.
type recordingInvalidator struct {
	repo *authinfra.SlotTokenRepository

	mu      sync.Mutex
	reasons []domain.InvalidationReason
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, reason domain.InvalidationReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	if r.repo != nil {
		_ = r.repo.Clear(ctx)
	}
}

func (r *recordingInvalidator) Reasons() []domain.InvalidationReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.InvalidationReason(nil), r.reasons...)
}

func newRepo(t require.TestingT, seed *domain.Credentials) *authinfra.SlotTokenRepository {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	repo := authinfra.NewSlotTokenRepository(storage.NewMemoryStore())
	if seed != nil {
		require.NoError(t, repo.Write(context.Background(), *seed))
	}
	return repo
}
