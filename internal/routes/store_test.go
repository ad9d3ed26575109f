package routes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "routes.json"))
	require.NoError(t, err)
	return store
}

func TestStore_UpsertGetDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, ok := store.Get("orders")
	assert.False(t, ok)

	require.NoError(t, store.Upsert("orders", "https://a.example/hook"))

	dest, ok := store.Get("orders")
	assert.True(t, ok)
	assert.Equal(t, "https://a.example/hook", dest)

	// Upsert overwrites unconditionally.
	require.NoError(t, store.Upsert("orders", "https://b.example/hook"))
	dest, _ = store.Get("orders")
	assert.Equal(t, "https://b.example/hook", dest)

	require.NoError(t, store.Delete("orders"))
	_, ok = store.Get("orders")
	assert.False(t, ok)
}

func TestStore_DeleteNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.Delete("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertValidation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	assert.ErrorIs(t, store.Upsert("k", ""), ErrEmptyDestination)
	assert.ErrorIs(t, store.Upsert("k", "   "), ErrEmptyDestination)
	assert.ErrorIs(t, store.Upsert("", "https://a.example"), ErrInvalidKey)
	assert.ErrorIs(t, store.Upsert("a/b", "https://a.example"), ErrInvalidKey)
	assert.ErrorIs(t, store.Upsert("a?b", "https://a.example"), ErrInvalidKey)
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.Upsert("a", "https://a.example"))
	require.NoError(t, store.Upsert("b", "https://b.example"))

	list := store.List()
	assert.Equal(t, map[string]string{
		"a": "https://a.example",
		"b": "https://b.example",
	}, list)

	// The returned map is a copy.
	list["c"] = "https://c.example"
	_, ok := store.Get("c")
	assert.False(t, ok)
}

func TestStore_PersistsSynchronously(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	store, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Upsert("orders", "https://a.example/hook"))

	// The mutation is on disk before Upsert returned.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var table map[string]string
	require.NoError(t, json.Unmarshal(data, &table))
	assert.Equal(t, map[string]string{"orders": "https://a.example/hook"}, table)

	// Pretty-printed format.
	assert.Contains(t, string(data), "\n")
}

func TestStore_LoadsExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"k":"https://a.example"}`), 0o600))

	store, err := NewStore(path)
	require.NoError(t, err)

	dest, ok := store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "https://a.example", dest)
}

func TestStore_Reload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert("a", "https://a.example"))

	// Simulate an external edit: reload replaces the whole table,
	// never merges.
	require.NoError(t, os.WriteFile(path, []byte(`{"b":"https://b.example"}`), 0o600))
	require.NoError(t, store.Reload())

	_, ok := store.Get("a")
	assert.False(t, ok)
	dest, ok := store.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "https://b.example", dest)
}

func TestStore_ReloadKeepsTableOnParseError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert("a", "https://a.example"))

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	assert.Error(t, store.Reload())

	// The previous table is still in place.
	dest, ok := store.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "https://a.example", dest)
}

func TestStore_ReloadMissingFileYieldsEmptyTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.json")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert("a", "https://a.example"))

	require.NoError(t, os.Remove(path))
	require.NoError(t, store.Reload())

	assert.Zero(t, store.Len())
}

func TestStore_MissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}
