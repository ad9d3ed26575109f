package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces recent history lists in Redis.
const redisKeyPrefix = "hookgw:history:"

// RedisStore is a RecentStore backed by Redis lists. Each key maps to
// a list trimmed to capacity, newest first, so the recent view
// survives gateway restarts and can be shared between replicas.
type RedisStore struct {
	client   *redis.Client
	capacity int
}

// RedisStoreConfig holds Redis connection settings.
type RedisStoreConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisStore creates a RedisStore with the given per-key capacity.
func NewRedisStore(cfg RedisStoreConfig, capacity int) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address must not be empty")
	}
	if capacity < 1 {
		capacity = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{client: client, capacity: capacity}, nil
}

// NewRedisStoreWithClient creates a RedisStore using an existing
// client. Used by tests with miniredis.
func NewRedisStoreWithClient(client *redis.Client, capacity int) *RedisStore {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisStore{client: client, capacity: capacity}
}

// Ping verifies connectivity to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Push inserts an entry at the head of the key's list and trims the
// list to capacity. LPUSH plus LTRIM keeps the list bounded and
// newest first without any read-modify-write cycle.
func (s *RedisStore) Push(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	listKey := redisKeyPrefix + entry.Key

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, listKey, data)
	pipe.LTrim(ctx, listKey, 0, int64(s.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push history entry: %w", err)
	}

	return nil
}

// Query returns up to limit entries for key, newest first.
func (s *RedisStore) Query(ctx context.Context, key string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	values, err := s.client.LRange(ctx, redisKeyPrefix+key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]*Entry, 0, len(values))
	for _, v := range values {
		var entry Entry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			// Skip records that cannot be decoded; the durable log
			// still holds the original.
			continue
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

// Clear removes the key's list.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
