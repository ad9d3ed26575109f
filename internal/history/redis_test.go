package history

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, capacity int) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisStoreConfig{Address: mr.Addr()}, capacity)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestNewRedisStore_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(RedisStoreConfig{}, 10)
	assert.Error(t, err)
}

func TestRedisStore_Ping(t *testing.T) {
	t.Parallel()

	store := newTestRedisStore(t, 10)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestRedisStore_PushAndQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestRedisStore(t, 10)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Push(ctx, newEntry("k", 200+i)))
	}

	entries, err := store.Query(ctx, "k", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 203, entries[0].Status)
	assert.Equal(t, 201, entries[2].Status)
}

func TestRedisStore_TrimsToCapacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestRedisStore(t, 3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Push(ctx, newEntry("k", 200+i)))
	}

	entries, err := store.Query(ctx, "k", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 205, entries[0].Status)
	assert.Equal(t, 203, entries[2].Status)
}

func TestRedisStore_QueryLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestRedisStore(t, 10)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Push(ctx, newEntry("k", 200+i)))
	}

	entries, err := store.Query(ctx, "k", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 205, entries[0].Status)
}

func TestRedisStore_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestRedisStore(t, 10)

	require.NoError(t, store.Push(ctx, newEntry("k", 200)))
	require.NoError(t, store.Push(ctx, newEntry("other", 200)))
	require.NoError(t, store.Clear(ctx, "k"))

	entries, err := store.Query(ctx, "k", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Other keys are untouched.
	entries, err = store.Query(ctx, "other", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
