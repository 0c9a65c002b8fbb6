package ports

import (
	"context"

	"garagelink.app/client/internal/core/domain"
)

// KeyValueStore is durable per-key storage. SetMany and DeleteMany apply
// their whole batch or nothing.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetMany(ctx context.Context, values map[string]string) error
	DeleteMany(ctx context.Context, keys ...string) error
}

// TokenRepository stores the credential pair as one unit.
type TokenRepository interface {
	// Read returns nil when no complete pair is stored.
	Read(ctx context.Context) (*domain.Credentials, error)
	Write(ctx context.Context, creds domain.Credentials) error
	// CompareAndSwap writes next only while the stored refresh token is
	// still oldRefreshToken.
	CompareAndSwap(ctx context.Context, oldRefreshToken string, next domain.Credentials) (bool, error)
	Clear(ctx context.Context) error
	ReadUser(ctx context.Context) (*domain.User, error)
	WriteUser(ctx context.Context, user domain.User) error
}

// AuthGateway talks to the auth endpoints of the backend.
type AuthGateway interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	// Refresh returns an error that matches domain.ErrRefreshFailed or
	// domain.ErrRefreshTransport.
	Refresh(ctx context.Context, refreshToken string) (*domain.RefreshedTokens, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// SessionInvalidator ends the session after an irrecoverable auth failure.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, reason domain.InvalidationReason)
}

// Refresher is the single-flight refresh entry point used by the transport.
type Refresher interface {
	// RequestRefresh returns a fresh access token. staleToken is the token
	// the caller last used; when the stored token already differs from it,
	// the stored token is returned without a network call.
	RequestRefresh(ctx context.Context, staleToken string) (string, error)
}

// SessionObserver is notified once per invalidation.
type SessionObserver func(reason domain.InvalidationReason)
