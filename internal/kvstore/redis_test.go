package kvstore

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), server
}

func TestRedisStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()
	s, server := newRedisStore(t)

	_, err := s.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "alice", `{"password":"pw"}`))
	server.CheckGet(t, "alice", `{"password":"pw"}`)

	value, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, `{"password":"pw"}`, value)

	require.NoError(t, s.Remove(ctx, "alice"))
	assert.False(t, server.Exists("alice"))
	require.NoError(t, s.Remove(ctx, "alice"))
}

func TestRedisStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s, server := newRedisStore(t)

	require.NoError(t, s.Update(ctx, "counter", increment))
	require.NoError(t, s.Update(ctx, "counter", increment))
	server.CheckGet(t, "counter", "2")

	require.NoError(t, s.Update(ctx, "counter", func(string, bool) (string, error) {
		return "99", ErrSkipWrite
	}))
	server.CheckGet(t, "counter", "2")
}

func TestRedisStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)

	// one client per writer so WATCH sessions are independent
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		s := NewRedisStore(client)

		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- Update(ctx, s, "counter", increment)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	server.CheckGet(t, "counter", "8")
}

func TestRedisStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s, server := newRedisStore(t)
	server.Close()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), ErrStorage)
	assert.ErrorIs(t, s.Remove(ctx, "k"), ErrStorage)
	assert.ErrorIs(t, s.Update(ctx, "k", increment), ErrStorage)
}

func TestRedisStoreUpdateGivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	s, server := newRedisStore(t)
	other := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = other.Close() })

	calls := 0
	err := s.Update(ctx, "counter", func(string, bool) (string, error) {
		calls++
		// a competing writer lands between WATCH and EXEC every time
		require.NoError(t, other.Set(ctx, "counter", calls, 0).Err())
		return "mine", nil
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, redisMaxRetries, calls)
	server.CheckGet(t, "counter", strconv.Itoa(redisMaxRetries))
}
