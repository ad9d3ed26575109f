package history

import (
	"context"
	"sync"
)

// RecentStore is the bounded, per-key, newest-first view over recent
// entries. It is a cache of the durable log's tail: contents may be
// lost on restart and are never replayed from the durable log.
type RecentStore interface {
	// Push inserts an entry for its key, evicting the oldest entry
	// when the key's buffer is at capacity.
	Push(ctx context.Context, entry *Entry) error

	// Query returns up to limit entries for key, newest first.
	Query(ctx context.Context, key string, limit int) ([]*Entry, error)

	// Clear empties the buffer for key.
	Clear(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is the default in-process RecentStore. Buffers for
// different keys are independent: each has its own lock, so concurrent
// forwards to different keys never contend.
type MemoryStore struct {
	capacity int

	mu      sync.RWMutex
	buffers map[string]*ringBuffer
}

// NewMemoryStore creates a MemoryStore with the given per-key
// capacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{
		capacity: capacity,
		buffers:  make(map[string]*ringBuffer),
	}
}

// Push inserts an entry into the key's ring buffer.
func (s *MemoryStore) Push(_ context.Context, entry *Entry) error {
	s.mu.RLock()
	buf, ok := s.buffers[entry.Key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		buf, ok = s.buffers[entry.Key]
		if !ok {
			buf = newRingBuffer(s.capacity)
			s.buffers[entry.Key] = buf
		}
		s.mu.Unlock()
	}

	buf.push(entry)
	return nil
}

// Query returns up to limit entries for key, newest first.
func (s *MemoryStore) Query(_ context.Context, key string, limit int) ([]*Entry, error) {
	s.mu.RLock()
	buf, ok := s.buffers[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return buf.newestFirst(limit), nil
}

// Clear empties the buffer for key.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.buffers, key)
	s.mu.Unlock()
	return nil
}

// Close implements RecentStore.
func (s *MemoryStore) Close() error {
	return nil
}

// ringBuffer is a fixed-capacity circular buffer. push overwrites the
// oldest entry when full.
type ringBuffer struct {
	mu      sync.Mutex
	entries []*Entry
	next    int
	full    bool
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{entries: make([]*Entry, capacity)}
}

func (b *ringBuffer) push(entry *Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = entry
	b.next++
	if b.next == len(b.entries) {
		b.next = 0
		b.full = true
	}
}

// newestFirst returns up to limit entries, newest first. limit <= 0
// means no limit beyond capacity.
func (b *ringBuffer) newestFirst(limit int) []*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = len(b.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]*Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := b.next - i
		if idx < 0 {
			idx += len(b.entries)
		}
		out = append(out, b.entries[idx])
	}
	return out
}
