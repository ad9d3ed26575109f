// Package routes owns the route table: the mapping from caller-facing
// route keys to destination URLs. The table is backed by a JSON file
// that is fully rewritten on every mutation, so a crash immediately
// after a successful mutation cannot lose it. External edits to the
// file are picked up via Reload, which swaps the whole table
// atomically.
package routes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vyrodovalexey/avhookgw/internal/observability"
)

// Store is the route table. All operations are safe for concurrent
// use; mutations persist the full table synchronously before
// returning.
type Store struct {
	path   string
	logger observability.Logger

	mu    sync.RWMutex
	table map[string]string
}

// StoreOption is a functional option for configuring the store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger for the store.
func WithStoreLogger(logger observability.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a route store backed by the given file path. If the
// file exists it is loaded; a missing file yields an empty table and is
// created on the first mutation.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve routes file %s: %w", path, err)
	}

	s := &Store{
		path:   absPath,
		logger: observability.NopLogger(),
		table:  make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	table, err := loadTable(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.logger.Info("routes file does not exist yet, starting empty",
			observability.String("path", absPath),
		)
		return s, nil
	}

	s.table = table
	s.logger.Info("loaded route table",
		observability.String("path", absPath),
		observability.Int("routes", len(table)),
	)

	return s, nil
}

// Get returns the destination URL for a key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dest, ok := s.table[key]
	return dest, ok
}

// List returns a copy of the full key to destination mapping.
func (s *Store) List() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out
}

// Len returns the number of routes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// Upsert creates or overwrites the route for key. The mutation is
// persisted before Upsert returns; on persistence failure the
// in-memory table is rolled back so it never silently diverges from
// the durable state.
func (s *Store) Upsert(key, destination string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if strings.TrimSpace(destination) == "" {
		return ErrEmptyDestination
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.table[key]
	s.table[key] = destination

	if err := s.persistLocked(); err != nil {
		if existed {
			s.table[key] = prev
		} else {
			delete(s.table, key)
		}
		return fmt.Errorf("failed to persist route table: %w", err)
	}

	return nil
}

// Delete removes the route for key. Returns ErrNotFound when no such
// route exists. Like Upsert, the mutation is persisted synchronously
// and rolled back on persistence failure.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.table[key]
	if !ok {
		return ErrNotFound
	}
	delete(s.table, key)

	if err := s.persistLocked(); err != nil {
		s.table[key] = prev
		return fmt.Errorf("failed to persist route table: %w", err)
	}

	return nil
}

// Reload replaces the in-memory table with the current file contents.
// The swap is all-or-nothing: a reader observes either the previous
// table or the fully loaded new one, and a load failure leaves the
// previous table in place.
func (s *Store) Reload() error {
	table, err := loadTable(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			table = make(map[string]string)
		} else {
			return err
		}
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.logger.Info("reloaded route table",
		observability.String("path", s.path),
		observability.Int("routes", len(table)),
	)

	return nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string {
	return s.path
}

// persistLocked writes the full table to the backing file. Callers
// must hold s.mu. The write goes through a temp file and rename so a
// concurrent external reader never observes a partial file.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.table, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".routes-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

// loadTable reads and parses the routes file.
func loadTable(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from trusted configuration
	if err != nil {
		return nil, err
	}

	table := make(map[string]string)
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse routes file %s: %w", path, err)
	}

	return table, nil
}

// validateKey rejects keys that are empty or not safe to appear as a
// single path segment.
func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, "/?#%") {
		return ErrInvalidKey
	}
	return nil
}
