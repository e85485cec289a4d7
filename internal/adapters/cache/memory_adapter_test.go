package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

func TestMemoryAdapter_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	a := NewMemoryAdapter()
	a.now = func() time.Time { return now }

	require.NoError(t, a.Set(ctx, "k", []byte("v"), 10))
	got, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(11 * time.Second)
	_, err = a.Get(ctx, "k")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestMemoryAdapter_SetNX(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter()

	ok, err := a.SetNX(ctx, "event-1", []byte("1"), 60)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.SetNX(ctx, "event-1", []byte("1"), 60)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Delete(ctx, "event-1"))
	exists, err := a.Exists(ctx, "event-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	first, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second, "lease is held")

	now = now.Add(2 * time.Minute)
	third, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, third, "expired lease can be taken over")

	// releasing the stale lease must not drop the new holder
	require.NoError(t, first.Release(ctx))
	fourth, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, fourth)

	require.NoError(t, third.Release(ctx))
	fifth, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, fifth)
}
