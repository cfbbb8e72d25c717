package kvstore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "@posts")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "@posts", "[]"))
	value, err := s.Get(ctx, "@posts")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, s.Remove(ctx, "@posts"))
	require.NoError(t, s.Remove(ctx, "@posts"), "removing an absent key is not an error")
	_, err = s.Get(ctx, "@posts")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), ErrStorage)
}

func TestMemoryStoreUpdateSkipAndReject(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", "before"))

	err := Update(ctx, s, "k", func(string, bool) (string, error) { return "ignored", ErrSkipWrite })
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Update(ctx, s, "k", func(string, bool) (string, error) { return "ignored", boom })
	assert.ErrorIs(t, err, boom)

	value, _ := s.Get(ctx, "k")
	assert.Equal(t, "before", value)
}

func TestUpdateNoLostWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Update(ctx, s, "counter", increment)
		}()
	}
	wg.Wait()

	value, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "50", value)
}

func increment(current string, found bool) (string, error) {
	n := 0
	if found {
		var err error
		if n, err = strconv.Atoi(current); err != nil {
			return "", err
		}
	}
	return strconv.Itoa(n + 1), nil
}
