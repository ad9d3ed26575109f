package routes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnExternalEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert("a", "https://a.example"))

	reloaded := make(chan struct{}, 1)
	watcher, err := NewWatcher(store,
		WithDebounceDelay(20*time.Millisecond),
		WithReloadCallback(func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer func() { _ = watcher.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(`{"b":"https://b.example"}`), 0o600))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	_, ok := store.Get("b")
	assert.True(t, ok)
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	watcher, err := NewWatcher(store)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	require.NoError(t, watcher.Start(context.Background()))

	require.NoError(t, watcher.Stop())
	require.NoError(t, watcher.Stop())
}

func TestWatcher_ErrorCallbackOnBadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert("a", "https://a.example"))

	failed := make(chan error, 1)
	watcher, err := NewWatcher(store,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorCallback(func(err error) {
			select {
			case failed <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer func() { _ = watcher.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o600))

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}
}
