package valkey

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to VALKEY_TEST_ADDRESS or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("VALKEY_TEST_ADDRESS")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDRESS not set")
	}
	c, err := NewClient(Config{Address: addr, KeyPrefix: "azcrm-test"})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestKey_PrefixNormalised(t *testing.T) {
	c := &Client{prefix: "azcrm"}
	assert.Equal(t, "azcrm:lock:t1:s1", c.Key("lock", "t1", "s1"))
	assert.Equal(t, "azcrm", c.Key())

	bare := &Client{}
	assert.Equal(t, "lock:t1", bare.Key("lock", "t1"))
}

func TestLock_ExclusiveUntilReleased(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := c.Key("lock", t.Name(), time.Now().String())

	token, err := c.AcquireLock(ctx, key, DefaultLockOptions)
	require.NoError(t, err)

	_, err = c.AcquireLock(ctx, key, LockOptions{TTL: time.Second, RetryEvery: 10 * time.Millisecond, MaxRetries: 3})
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, c.ReleaseLock(ctx, key, "someone-else"))
	_, err = c.AcquireLock(ctx, key, LockOptions{TTL: time.Second, RetryEvery: 10 * time.Millisecond, MaxRetries: 3})
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, c.ReleaseLock(ctx, key, token))
	token2, err := c.AcquireLock(ctx, key, DefaultLockOptions)
	require.NoError(t, err)
	require.NoError(t, c.ReleaseLock(ctx, key, token2))
}

func TestEvalInt(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := c.Key("counter", t.Name(), time.Now().String())
	t.Cleanup(func() { _ = c.Del(context.Background(), key) })

	const incrBy = `return redis.call("incrby", KEYS[1], ARGV[1])`
	n, err := c.EvalInt(ctx, incrBy, []string{key}, "2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = c.EvalInt(ctx, incrBy, []string{key}, "3")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = c.EvalInt(ctx, `return redis.call("nope")`, []string{key})
	assert.Error(t, err)
}
