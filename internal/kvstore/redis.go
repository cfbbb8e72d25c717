package kvstore

import (
	"context"
	"errors"

	"backend-postboard/internal/observability"

	"github.com/redis/go-redis/v9"
)

const redisMaxRetries = 10

// RedisStore persists values as plain redis strings.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storageErr("get", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return storageErr("set", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return storageErr("remove", key, err)
	}
	return nil
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// client wrote the key in between.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < redisMaxRetries; attempt++ {
		var fnErr error
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Result()
			found := true
			if errors.Is(err, redis.Nil) {
				found = false
			} else if err != nil {
				return err
			}

			next, err := fn(current, found)
			if err != nil {
				fnErr = err
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case fnErr != nil:
			if errors.Is(fnErr, ErrSkipWrite) {
				return nil
			}
			return fnErr
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			observability.StoreConflicts.WithLabelValues("redis").Inc()
			continue
		default:
			return storageErr("update", key, err)
		}
	}
	return storageErr("update", key, ErrConflict)
}
