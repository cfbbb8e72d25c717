package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestGetSetJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var out []sample
	found, err := GetJSON(ctx, s, "items", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, s, "items", []sample{{ID: 1, Name: "a"}}))
	found, err = GetJSON(ctx, s, "items", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []sample{{ID: 1, Name: "a"}}, out)

	raw, _ := s.Get(ctx, "items")
	assert.JSONEq(t, `[{"id":1,"name":"a"}]`, raw)
}

func TestGetJSONCorrupt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "items", "{not json"))

	var out []sample
	found, err := GetJSON(ctx, s, "items", &out)
	assert.True(t, found)
	assert.True(t, IsCorrupt(err))
}

func TestUpdateJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	appendOne := func(current []sample, _ bool) ([]sample, error) {
		return append(current, sample{ID: len(current) + 1}), nil
	}
	require.NoError(t, UpdateJSON(ctx, s, "items", appendOne))
	require.NoError(t, UpdateJSON(ctx, s, "items", appendOne))

	var out []sample
	_, err := GetJSON(ctx, s, "items", &out)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, out[1].ID)
}

func TestUpdateJSONRefusesCorruptValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "items", "garbage"))

	err := UpdateJSON(ctx, s, "items", func(current []sample, _ bool) ([]sample, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCorrupt)

	raw, _ := s.Get(ctx, "items")
	assert.Equal(t, "garbage", raw)
}
