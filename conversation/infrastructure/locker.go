package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/sirupsen/logrus"
)

// MemoryLocker serialises work per key inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// ValkeyLocker serialises work per key across every node sharing the Valkey instance.
type ValkeyLocker struct {
	client *valkey.Client
	opts   valkey.LockOptions
}

func NewValkeyLocker(client *valkey.Client) *ValkeyLocker {
	return &ValkeyLocker{client: client, opts: valkey.DefaultLockOptions}
}

func (l *ValkeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.client.Key("lock", key)
	token, err := l.client.AcquireLock(ctx, lockKey, l.opts)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.client.ReleaseLock(releaseCtx, lockKey, token); err != nil {
				logrus.WithError(err).Warnf("[LOCKER] Failed to release %s", lockKey)
			}
		})
	}, nil
}
