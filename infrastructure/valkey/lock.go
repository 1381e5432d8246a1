package valkey

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

// ErrLockTimeout is returned when a lock could not be acquired within the retry budget.
var ErrLockTimeout = errors.New("lock acquisition timed out after max retries")

// releaseLockScript deletes the lock only if it still holds our token.
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// LockOptions controls retry behaviour of AcquireLock.
type LockOptions struct {
	TTL        time.Duration
	RetryEvery time.Duration
	MaxRetries int
}

var DefaultLockOptions = LockOptions{
	TTL:        5 * time.Second,
	RetryEvery: 50 * time.Millisecond,
	MaxRetries: 100,
}

// AcquireLock spins on SET NX PX until the lock is taken, the retries run out or ctx ends.
// The returned token must be passed to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, key string, opts LockOptions) (string, error) {
	if opts.TTL <= 0 {
		opts = DefaultLockOptions
	}
	token := uuid.New().String()

	for i := 0; i < opts.MaxRetries; i++ {
		cmd := c.inner.B().Set().Key(key).Value(token).Nx().Px(opts.TTL).Build()
		err := c.inner.Do(ctx, cmd).Error()
		if err == nil {
			return token, nil
		}
		if !valkeylib.IsValkeyNil(err) {
			logrus.Debugf("[VALKEY] Lock attempt %d failed for %s: %v", i+1, key, err)
		}

		// jitter para evitar thundering herd
		sleep := opts.RetryEvery + time.Duration(rand.Intn(20))*time.Millisecond
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sleep):
		}
	}
	return "", ErrLockTimeout
}

// ReleaseLock releases key only when it still holds token.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	cmd := c.inner.B().Eval().Script(releaseLockScript).Numkeys(1).Key(key).Arg(token).Build()
	if err := c.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
