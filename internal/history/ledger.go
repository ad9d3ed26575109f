package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vyrodovalexey/avhookgw/internal/observability"
)

// Ledger is the execution history: an append-only durable JSONL log
// (the source of truth) plus a bounded per-key recent view.
type Ledger struct {
	recent RecentStore
	logger observability.Logger
	onDrop func()

	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
}

// LedgerOption is a functional option for the ledger.
type LedgerOption func(*Ledger)

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger observability.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithLedgerWriter sets the durable log writer, replacing the file
// opened from the path. Used by tests.
func WithLedgerWriter(w io.Writer) LedgerOption {
	return func(l *Ledger) {
		l.writer = w
	}
}

// WithDropHook sets a hook invoked whenever a durable write is
// dropped.
func WithDropHook(hook func()) LedgerOption {
	return func(l *Ledger) {
		l.onDrop = hook
	}
}

// NewLedger creates a ledger appending to the file at path and
// mirroring entries into recent. The file is opened in append-only
// mode and never rewritten or compacted.
func NewLedger(path string, recent RecentStore, opts ...LedgerOption) (*Ledger, error) {
	l := &Ledger{
		recent: recent,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.writer == nil {
		//nolint:gosec // G304: path from trusted configuration
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open history log file: %w", err)
		}
		l.writer = file
		l.closer = file
	}

	return l, nil
}

// Append records one entry. Durable writes are best effort: a write
// error is logged and counted but never returned, so observability
// cannot fail the forwarding path. The recent view is updated
// regardless of the durable outcome.
func (l *Ledger) Append(ctx context.Context, entry *Entry) {
	entry.finalize()

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("failed to marshal history entry",
			observability.String("key", entry.Key),
			observability.Error(err),
		)
		l.dropped()
	} else {
		data = append(data, '\n')

		l.mu.Lock()
		_, err = l.writer.Write(data)
		l.mu.Unlock()

		if err != nil {
			l.logger.Warn("failed to append history entry to durable log",
				observability.String("key", entry.Key),
				observability.Error(err),
			)
			l.dropped()
		}
	}

	if err := l.recent.Push(ctx, entry); err != nil {
		l.logger.Warn("failed to push history entry to recent store",
			observability.String("key", entry.Key),
			observability.Error(err),
		)
	}
}

// Query returns up to limit recent entries for key, newest first.
func (l *Ledger) Query(ctx context.Context, key string, limit int) ([]*Entry, error) {
	return l.recent.Query(ctx, key, limit)
}

// Clear empties the recent view for key. The durable log is an
// immutable audit trail and is left untouched.
func (l *Ledger) Clear(ctx context.Context, key string) error {
	return l.recent.Clear(ctx, key)
}

// Close closes the durable log file and the recent store.
func (l *Ledger) Close() error {
	var firstErr error
	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			firstErr = err
		}
	}
	if err := l.recent.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (l *Ledger) dropped() {
	if l.onDrop != nil {
		l.onDrop()
	}
}
