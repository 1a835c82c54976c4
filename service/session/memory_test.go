package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, now *time.Time) *Memory {
	t.Helper()
	m := NewMemory(MemoryConf{
		IdleTTL:    5 * time.Minute,
		SweepEvery: time.Hour, // 测试里手动触发 sweepOnce
		Clock:      func() time.Time { return *now },
	})
	t.Cleanup(m.Close)
	return m
}

func TestMemory_PutGetDel(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestMemory(t, &now)
	ctx := context.Background()

	ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, 1, "tok"))
	ok, err = m.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Del(ctx, 1))
	ok, err = m.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_IdleExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestMemory(t, &now)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, 1, "tok"))

	now = now.Add(5*time.Minute + time.Second)
	ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "entry past idle ttl reads as offline")
}

func TestMemory_GetRefreshesIdle(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestMemory(t, &now)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, 1, "tok"))

	// 每 4 分钟访问一次，远超初始 5 分钟后仍在线
	for i := 0; i < 5; i++ {
		now = now.Add(4 * time.Minute)
		ok, err := m.Get(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestMemory_SweepOnce(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newTestMemory(t, &now)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, 1, "a"))
	require.NoError(t, m.Put(ctx, 2, "b"))

	now = now.Add(6 * time.Minute)
	require.NoError(t, m.Put(ctx, 3, "c"))

	m.sweepOnce(now)

	m.mu.Lock()
	_, has1 := m.entries[1]
	_, has2 := m.entries[2]
	_, has3 := m.entries[3]
	m.mu.Unlock()

	assert.False(t, has1)
	assert.False(t, has2)
	assert.True(t, has3)
}
