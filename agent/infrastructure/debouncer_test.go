package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushed []domain.PendingReply
	causes  []error
}

func (r *flushRecorder) fn(block time.Duration) FlushFunc {
	return func(ctx context.Context, p domain.PendingReply) {
		if block > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(block):
			}
		}
		r.mu.Lock()
		r.flushed = append(r.flushed, p)
		r.causes = append(r.causes, context.Cause(ctx))
		r.mu.Unlock()
	}
}

func (r *flushRecorder) snapshot() ([]domain.PendingReply, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PendingReply(nil), r.flushed...), append([]error(nil), r.causes...)
}

func pending(conv, id, text string) domain.PendingReply {
	return domain.PendingReply{ConversationID: conv, MessageIDs: []string{id}, Texts: []string{text}}
}

func TestDebouncer_CombinesMessagesInWindow(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(rec.fn(0))

	require.NoError(t, d.Enqueue(pending("c1", "m1", "hola"), 50*time.Millisecond))
	require.NoError(t, d.Enqueue(pending("c1", "m2", "quiero info"), 50*time.Millisecond))
	require.NoError(t, d.Enqueue(pending("c2", "m3", "otro chat"), 50*time.Millisecond))
	assert.Equal(t, 2, d.Pending())

	assert.Eventually(t, func() bool {
		f, _ := rec.snapshot()
		return len(f) == 2
	}, time.Second, 10*time.Millisecond)

	flushed, _ := rec.snapshot()
	byConv := map[string]domain.PendingReply{}
	for _, p := range flushed {
		byConv[p.ConversationID] = p
	}
	assert.Equal(t, "hola\nquiero info", byConv["c1"].Text())
	assert.Equal(t, []string{"m1", "m2"}, byConv["c1"].MessageIDs)
	assert.Equal(t, "otro chat", byConv["c2"].Text())
}

func TestDebouncer_NewMessageSupersedesInflight(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(rec.fn(time.Second))

	require.NoError(t, d.Enqueue(pending("c1", "m1", "primero"), 0))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, d.Enqueue(pending("c1", "m2", "segundo"), 20*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, causes := rec.snapshot()
		return len(causes) >= 1
	}, time.Second, 5*time.Millisecond)

	_, causes := rec.snapshot()
	assert.True(t, errors.Is(causes[0], domain.ErrSuperseded))

	require.NoError(t, d.Shutdown(context.Background()))
	flushed, causes := rec.snapshot()
	require.Len(t, flushed, 2)
	assert.NoError(t, causes[1])
	assert.Equal(t, "primero\nsegundo", flushed[1].Text())
	assert.Equal(t, []string{"m1", "m2"}, flushed[1].MessageIDs)
}

func TestDebouncer_ShutdownDrainsPending(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(rec.fn(0))

	require.NoError(t, d.Enqueue(pending("c1", "m1", "hola"), time.Hour))
	require.NoError(t, d.Shutdown(context.Background()))

	flushed, causes := rec.snapshot()
	require.Len(t, flushed, 1)
	assert.NoError(t, causes[0])
	assert.ErrorIs(t, d.Enqueue(pending("c1", "m2", "tarde"), 0), ErrShuttingDown)
}

func TestDebouncer_ShutdownDeadlineCancelsWork(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(rec.fn(5 * time.Second))

	require.NoError(t, d.Enqueue(pending("c1", "m1", "hola"), 0))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	assert.Eventually(t, func() bool {
		f, _ := rec.snapshot()
		return len(f) == 1
	}, time.Second, 5*time.Millisecond)
}
