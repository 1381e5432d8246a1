package infrastructure

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter_MinInterval(t *testing.T) {
	m := NewMemoryRateLimiter()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "c1", 5*time.Second, 0)
	assert.True(t, ok)
	ok, _ = m.Allow(ctx, "c1", 5*time.Second, 0)
	assert.False(t, ok)
	ok, _ = m.Allow(ctx, "c2", 5*time.Second, 0)
	assert.True(t, ok, "other conversation unaffected")

	now = now.Add(5 * time.Second)
	ok, _ = m.Allow(ctx, "c1", 5*time.Second, 0)
	assert.True(t, ok)
}

func TestMemoryRateLimiter_MaxPerHour(t *testing.T) {
	m := NewMemoryRateLimiter()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := m.Allow(ctx, "c1", 0, 3)
		assert.True(t, ok)
		now = now.Add(time.Minute)
	}
	ok, _ := m.Allow(ctx, "c1", 0, 3)
	assert.False(t, ok)

	// la primera respuesta sale de la ventana
	now = now.Add(58 * time.Minute)
	ok, _ = m.Allow(ctx, "c1", 0, 3)
	assert.True(t, ok)
}

func TestMemoryRateLimiter_RejectedCallsDoNotCount(t *testing.T) {
	m := NewMemoryRateLimiter()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "c1", time.Minute, 2)
	assert.True(t, ok)
	for i := 0; i < 5; i++ {
		ok, _ = m.Allow(ctx, "c1", time.Minute, 2)
		assert.False(t, ok)
	}
	now = now.Add(time.Minute)
	ok, _ = m.Allow(ctx, "c1", time.Minute, 2)
	assert.True(t, ok)
}

func TestMemoryRateLimiter_CheckDoesNotConsume(t *testing.T) {
	m := NewMemoryRateLimiter()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Check(ctx, "c1", 5*time.Second, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := m.Allow(ctx, "c1", 5*time.Second, 1)
	assert.True(t, ok)

	ok, _ = m.Check(ctx, "c1", 5*time.Second, 0)
	assert.False(t, ok, "interval not elapsed")
	now = now.Add(5 * time.Second)
	ok, _ = m.Check(ctx, "c1", 5*time.Second, 0)
	assert.True(t, ok)
	ok, _ = m.Check(ctx, "c1", 5*time.Second, 1)
	assert.False(t, ok, "hourly budget spent")
}

func newValkeyLimiter(t *testing.T) *ValkeyRateLimiter {
	t.Helper()
	addr := os.Getenv("VALKEY_TEST_ADDRESS")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDRESS not set")
	}
	client, err := valkey.NewClient(valkey.Config{Address: addr, KeyPrefix: "azcrm-test"})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return NewValkeyRateLimiter(client)
}

func TestValkeyRateLimiter(t *testing.T) {
	v := newValkeyLimiter(t)
	ctx := context.Background()
	key := t.Name() + time.Now().String()

	ok, err := v.Check(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = v.Allow(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	assert.True(t, ok, "check left the slot free")
	ok, err = v.Check(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = v.Allow(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(250 * time.Millisecond)
	ok, err = v.Allow(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(250 * time.Millisecond)
	ok, err = v.Allow(ctx, key, 200*time.Millisecond, 2)
	require.NoError(t, err)
	assert.False(t, ok, "hourly budget spent")
}

func TestValkeyRateLimiter_RollingHour(t *testing.T) {
	v := newValkeyLimiter(t)
	now := time.Now()
	v.now = func() time.Time { return now }
	ctx := context.Background()
	key := t.Name() + now.String()

	for i := 0; i < 3; i++ {
		ok, err := v.Allow(ctx, key, 0, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		now = now.Add(20 * time.Minute)
	}
	// 40 minutos después de la primera: las tres siguen dentro de la hora
	now = now.Add(-20 * time.Minute)
	ok, err := v.Allow(ctx, key, 0, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(21 * time.Minute)
	ok, err = v.Allow(ctx, key, 0, 3)
	require.NoError(t, err)
	assert.True(t, ok, "first reply left the window")
	ok, err = v.Allow(ctx, key, 0, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
