package replystore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed [Store] for deployments running more than
// one server process against the same game sessions. Lines are kept in a
// per-session list, newest first, trimmed to capacity.
//
// Keys are namespaced as "talkdown:replies:{session}".
type RedisStore struct {
	client   *redis.Client
	capacity int
}

// Compile-time interface assertion.
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore using the given client. capacity <= 0
// uses [DefaultCapacity]. The caller owns the client's lifecycle.
func NewRedisStore(client *redis.Client, capacity int) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{client: client, capacity: capacity}
}

func (r *RedisStore) key(session string) string {
	return "talkdown:replies:" + session
}

// Seen implements Store. The session's recorded lines are fetched and
// compared client-side because the near-duplicate check cannot run inside
// Redis.
func (r *RedisStore) Seen(ctx context.Context, session, line string) (bool, error) {
	key := Normalize(line)
	if key == "" {
		return false, nil
	}

	lines, err := r.client.LRange(ctx, r.key(session), 0, int64(r.capacity)-1).Result()
	if err != nil {
		return false, fmt.Errorf("replystore: lrange: %w", err)
	}
	for _, prev := range lines {
		if Equivalent(prev, key) {
			return true, nil
		}
	}
	return false, nil
}

// Record implements Store.
func (r *RedisStore) Record(ctx context.Context, session, line string) error {
	key := Normalize(line)
	if key == "" {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key(session), key)
	pipe.LTrim(ctx, r.key(session), 0, int64(r.capacity)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replystore: record: %w", err)
	}
	return nil
}

// Ping checks connectivity for the readiness probe.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
