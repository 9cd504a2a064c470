package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records in Redis under a namespace prefix. Records carry
// no Redis-level expiration; the L2 tier owns TTL handling so that the
// filesystem and Redis backends expire identically.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a Redis-backed store. An empty prefix defaults to
// "gridagent:cache".
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = "gridagent:cache"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

// Write stores data under key.
func (s *RedisStore) Write(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, s.redisKey(key), data, 0).Err()
}

// Read returns the record for key, or not-found when absent.
func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := s.client.Get(ctx, s.redisKey(key))
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	data, err := cmd.Bytes()
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes the record for key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// ListKeys scans the namespace and returns the keys present.
func (s *RedisStore) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.redisKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
