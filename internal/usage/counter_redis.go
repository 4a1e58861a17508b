package usage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const counterKeyPrefix = "counter:"

// RedisCounterStore keeps the global run counter in redis for deployments
// that share one instance across processes. INCR gives the read-modify-write
// a single round trip.
type RedisCounterStore struct {
	rdb  *redis.Client
	name string
}

func NewRedisCounterStore(rdb *redis.Client, name string) *RedisCounterStore {
	if name == "" {
		name = DefaultCounterName
	}
	return &RedisCounterStore{rdb: rdb, name: name}
}

func (s *RedisCounterStore) key() string {
	return counterKeyPrefix + s.name
}

func (s *RedisCounterStore) Total(ctx context.Context) (int64, error) {
	n, err := s.rdb.Get(ctx, s.key()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisCounterStore) Increment(ctx context.Context) (int64, error) {
	return s.rdb.Incr(ctx, s.key()).Result()
}

func (s *RedisCounterStore) Reset(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key()).Err()
}
