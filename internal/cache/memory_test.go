package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedStore(now *time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = func() time.Time { return *now }
	return s
}

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)
	s := newClockedStore(&now)

	require.NoError(t, s.Set(ctx, "sppt:years:510203000102400180", []byte(`[{"year":"2024"}]`), time.Minute))
	require.NoError(t, s.Set(ctx, "pinned", []byte("1"), 0))

	v, ok, err := s.Get(ctx, "sppt:years:510203000102400180")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"year":"2024"}]`, string(v))

	now = now.Add(time.Minute)
	_, ok, err = s.Get(ctx, "sppt:years:510203000102400180")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = s.Get(ctx, "pinned")
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("abc"), time.Minute))

	v, _, _ := s.Get(ctx, "k")
	v[0] = 'x'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_SweepsUnreadExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)
	s := newClockedStore(&now)
	s.sweepEvery = 4

	require.NoError(t, s.Set(ctx, "pinned", []byte("1"), 0))
	for i := range 3 {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("sppt:detail:%d", i), []byte("{}"), time.Minute))
	}
	assert.Equal(t, 4, s.Len())

	now = now.Add(2 * time.Minute)
	for i := range 3 {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("sppt:years:%d", i), []byte("[]"), time.Minute))
	}
	assert.Equal(t, 7, s.Len())

	// The eighth write triggers a sweep of the three stale entries.
	require.NoError(t, s.Set(ctx, "sppt:years:3", []byte("[]"), time.Minute))
	assert.Equal(t, 5, s.Len())

	_, ok, _ := s.Get(ctx, "pinned")
	assert.True(t, ok)
}
