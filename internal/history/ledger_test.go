package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter always fails, simulating a broken durable log.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLedger_AppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	ledger, err := NewLedger("", NewMemoryStore(10), WithLedgerWriter(buf))
	require.NoError(t, err)

	ledger.Append(ctx, newEntry("k", 200))
	ledger.Append(ctx, newEntry("k", 502))

	scanner := bufio.NewScanner(buf)
	var lines []Entry
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}

	require.Len(t, lines, 2)
	assert.Equal(t, 200, lines[0].Status)
	assert.Equal(t, 502, lines[1].Status)
	assert.NotEmpty(t, lines[0].ID)
	assert.False(t, lines[0].Timestamp.IsZero())
}

func TestLedger_AppendToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	ledger, err := NewLedger(path, NewMemoryStore(10))
	require.NoError(t, err)

	ledger.Append(context.Background(), newEntry("k", 200))
	require.NoError(t, ledger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
	assert.Contains(t, string(data), `"key":"k"`)
}

func TestLedger_DurableWriteFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	drops := 0
	ledger, err := NewLedger("", NewMemoryStore(10),
		WithLedgerWriter(failingWriter{}),
		WithDropHook(func() { drops++ }),
	)
	require.NoError(t, err)

	// A failing durable log never blocks the request path; the recent
	// view is still updated.
	ledger.Append(ctx, newEntry("k", 200))

	assert.Equal(t, 1, drops)

	entries, err := ledger.Query(ctx, "k", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedger_ClearLeavesDurableLogUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	buf := &bytes.Buffer{}
	ledger, err := NewLedger("", NewMemoryStore(10), WithLedgerWriter(buf))
	require.NoError(t, err)

	ledger.Append(ctx, newEntry("k", 200))
	before := buf.Len()

	require.NoError(t, ledger.Clear(ctx, "k"))

	entries, err := ledger.Query(ctx, "k", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The durable audit trail is never rewritten.
	assert.Equal(t, before, buf.Len())
}
