package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/core/ports"
)

var pairSlots = []string{domain.SlotAccessToken, domain.SlotRefreshToken, domain.SlotUserID}

// SlotTokenRepository keeps the credential pair in named KeyValueStore slots.
// The mutex makes Write and Clear appear atomic to Read; the store's batch
// operations keep the on-disk pair consistent across crashes.
type SlotTokenRepository struct {
	store ports.KeyValueStore
	mu    sync.RWMutex
}

// NewSlotTokenRepository wraps store.
func NewSlotTokenRepository(store ports.KeyValueStore) *SlotTokenRepository {
	return &SlotTokenRepository{store: store}
}

// Read returns the stored pair, or nil when either token slot is empty.
func (r *SlotTokenRepository) Read(ctx context.Context) (*domain.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	access, _, err := r.store.Get(ctx, domain.SlotAccessToken)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	refresh, _, err := r.store.Get(ctx, domain.SlotRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("read refresh token: %w", err)
	}
	userID, _, err := r.store.Get(ctx, domain.SlotUserID)
	if err != nil {
		return nil, fmt.Errorf("read user id: %w", err)
	}

	creds := domain.Credentials{AccessToken: access, RefreshToken: refresh, UserID: userID}
	if creds.IsZero() {
		return nil, nil
	}
	return &creds, nil
}

// Write replaces the whole pair in one batch.
func (r *SlotTokenRepository) Write(ctx context.Context, creds domain.Credentials) error {
	if creds.IsZero() {
		return fmt.Errorf("write credentials: access and refresh token are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeLocked(ctx, creds)
}

// CompareAndSwap replaces the pair only if the stored refresh token is still
// oldRefreshToken. A cleared or re-logged-in session is left alone.
func (r *SlotTokenRepository) CompareAndSwap(ctx context.Context, oldRefreshToken string, next domain.Credentials) (bool, error) {
	if next.IsZero() {
		return false, fmt.Errorf("write credentials: access and refresh token are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok, err := r.store.Get(ctx, domain.SlotRefreshToken)
	if err != nil {
		return false, fmt.Errorf("read refresh token: %w", err)
	}
	if !ok || current != oldRefreshToken {
		return false, nil
	}
	if err := r.writeLocked(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SlotTokenRepository) writeLocked(ctx context.Context, creds domain.Credentials) error {
	if err := r.store.SetMany(ctx, map[string]string{
		domain.SlotAccessToken:  creds.AccessToken,
		domain.SlotRefreshToken: creds.RefreshToken,
		domain.SlotUserID:       creds.UserID,
	}); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the pair and the cached user record.
func (r *SlotTokenRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteMany(ctx, append(pairSlots, domain.SlotUser)...); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// ReadUser returns the cached user record, or nil if none is stored.
func (r *SlotTokenRepository) ReadUser(ctx context.Context) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, ok, err := r.store.Get(ctx, domain.SlotUser)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &user, nil
}

// WriteUser stores the cached user record.
func (r *SlotTokenRepository) WriteUser(ctx context.Context, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SetMany(ctx, map[string]string{domain.SlotUser: string(raw)}); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

var _ ports.TokenRepository = (*SlotTokenRepository)(nil)
