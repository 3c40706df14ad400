package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-course-portal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps session snapshots in Redis. Every write refreshes the key's
// expiry so abandoned browser sessions are reclaimed by Redis itself.
type Store struct {
	client *redis.Client
	expiry time.Duration
}

// New returns a Store backed by the Redis server at addr. An expiry of zero keeps keys forever.
func New(addr string, expiry time.Duration) *Store {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr}), expiry)
}

func NewFromClient(client *redis.Client, expiry time.Duration) *Store {
	return &Store{client: client, expiry: expiry}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[redisstore Get] %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.expiry).Err(); err != nil {
		return fmt.Errorf("[redisstore Set] %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("[redisstore Delete] %w", err)
	}
	return nil
}

// Ping verifies the connection at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
