package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/infrastructure/storage"
)

func TestSlotTokenRepository_WriteRead(t *testing.T) {
	ctx := context.Background()
	repo := NewSlotTokenRepository(storage.NewMemoryStore())

	got, err := repo.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	creds := domain.Credentials{AccessToken: "at-1", RefreshToken: "rt-1", UserID: "u-1"}
	require.NoError(t, repo.Write(ctx, creds))

	got, err = repo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, *got)
}

func TestSlotTokenRepository_RejectsIncompletePair(t *testing.T) {
	repo := NewSlotTokenRepository(storage.NewMemoryStore())

	err := repo.Write(context.Background(), domain.Credentials{AccessToken: "at-1"})

	require.Error(t, err)
}

func TestSlotTokenRepository_HalfPairReadsAsNone(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.SetMany(ctx, map[string]string{domain.SlotAccessToken: "at-1"}))
	repo := NewSlotTokenRepository(store)

	got, err := repo.Read(ctx)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSlotTokenRepository_ClearRemovesPairAndUser(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewSlotTokenRepository(store)
	require.NoError(t, repo.Write(ctx, domain.Credentials{AccessToken: "at-1", RefreshToken: "rt-1", UserID: "u-1"}))
	require.NoError(t, repo.WriteUser(ctx, domain.User{ID: "u-1", Email: "driver@example.com", Role: domain.RoleDriver}))

	require.NoError(t, repo.Clear(ctx))

	got, err := repo.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	user, err := repo.ReadUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Zero(t, store.Len())
}

func TestSlotTokenRepository_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	old := domain.Credentials{AccessToken: "at-1", RefreshToken: "rt-1", UserID: "u-1"}
	next := domain.Credentials{AccessToken: "at-2", RefreshToken: "rt-2", UserID: "u-1"}

	t.Run("swaps when refresh token matches", func(t *testing.T) {
		repo := NewSlotTokenRepository(storage.NewMemoryStore())
		require.NoError(t, repo.Write(ctx, old))

		ok, err := repo.CompareAndSwap(ctx, "rt-1", next)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, next, *got)
	})

	t.Run("keeps a newer pair", func(t *testing.T) {
		repo := NewSlotTokenRepository(storage.NewMemoryStore())
		require.NoError(t, repo.Write(ctx, next))

		ok, err := repo.CompareAndSwap(ctx, "rt-1", domain.Credentials{AccessToken: "at-x", RefreshToken: "rt-x"})
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, next, *got)
	})

	t.Run("does not resurrect a cleared session", func(t *testing.T) {
		repo := NewSlotTokenRepository(storage.NewMemoryStore())
		require.NoError(t, repo.Write(ctx, old))
		require.NoError(t, repo.Clear(ctx))

		ok, err := repo.CompareAndSwap(ctx, "rt-1", next)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.Read(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
