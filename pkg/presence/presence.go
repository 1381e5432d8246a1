package presence

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultStaleAfter: WhatsApp no siempre envía "paused"; un composing viejo se descarta.
const DefaultStaleAfter = 12 * time.Second

type entry struct {
	composing bool
	updatedAt time.Time
}

// Tracker recuerda si un contacto está escribiendo en un chat.
type Tracker struct {
	mu         sync.Mutex
	store      map[string]entry
	staleAfter time.Duration
	poll       time.Duration
	now        func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		store:      make(map[string]entry),
		staleAfter: DefaultStaleAfter,
		poll:       250 * time.Millisecond,
		now:        time.Now,
	}
}

func key(sessionID, chatJID string) string {
	return strings.TrimSpace(sessionID) + "|" + strings.TrimSpace(chatJID)
}

func (t *Tracker) Update(sessionID, chatJID string, composing bool) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(chatJID) == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !composing {
		delete(t.store, key(sessionID, chatJID))
		return
	}
	t.store[key(sessionID, chatJID)] = entry{composing: true, updatedAt: t.now()}
}

func (t *Tracker) IsComposing(sessionID, chatJID string) bool {
	k := key(sessionID, chatJID)
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.store[k]
	if !ok {
		return false
	}
	if t.now().Sub(e.updatedAt) > t.staleAfter {
		delete(t.store, k)
		return false
	}
	return e.composing
}

// WaitIdle espera hasta que el contacto deje de escribir. Devuelve false si se
// agotó timeout o se canceló ctx con el contacto todavía escribiendo.
func (t *Tracker) WaitIdle(ctx context.Context, sessionID, chatJID string, timeout time.Duration) bool {
	if !t.IsComposing(sessionID, chatJID) {
		return true
	}
	if timeout <= 0 {
		return false
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(t.poll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return !t.IsComposing(sessionID, chatJID)
		case <-poll.C:
			if !t.IsComposing(sessionID, chatJID) {
				return true
			}
		}
	}
}
