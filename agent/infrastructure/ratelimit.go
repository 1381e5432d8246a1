package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateWindow es la ventana del límite de respuestas por hora.
const RateWindow = time.Hour

type rateEntry struct {
	limiter  *rate.Limiter
	interval time.Duration
	window   []time.Time
	lastSeen time.Time
}

func (e *rateEntry) prune(now time.Time) {
	cutoff := now.Add(-RateWindow)
	kept := e.window[:0]
	for _, t := range e.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.window = kept
}

// MemoryRateLimiter limita respuestas por conversación dentro del proceso:
// intervalo mínimo con x/time/rate y máximo por hora con ventana deslizante.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
	calls   int
	now     func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{entries: make(map[string]*rateEntry), now: time.Now}
}

// Check responde si Allow aceptaría ahora, sin consumir nada.
func (m *MemoryRateLimiter) Check(_ context.Context, key string, minInterval time.Duration, maxPerHour int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return true, nil
	}
	now := m.now()
	e.prune(now)
	if maxPerHour > 0 && len(e.window) >= maxPerHour {
		return false, nil
	}
	// con otro intervalo Allow crea un limiter nuevo con la ráfaga llena
	if e.interval == minInterval && e.limiter.TokensAt(now) < 1 {
		return false, nil
	}
	return true, nil
}

func (m *MemoryRateLimiter) Allow(_ context.Context, key string, minInterval time.Duration, maxPerHour int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.calls++
	if m.calls%256 == 0 {
		m.sweep(now)
	}

	e, ok := m.entries[key]
	if !ok || e.interval != minInterval {
		limit := rate.Inf
		if minInterval > 0 {
			limit = rate.Every(minInterval)
		}
		fresh := &rateEntry{limiter: rate.NewLimiter(limit, 1), interval: minInterval}
		if ok {
			fresh.window = e.window
		}
		e = fresh
		m.entries[key] = e
	}
	e.lastSeen = now
	e.prune(now)

	if maxPerHour > 0 && len(e.window) >= maxPerHour {
		return false, nil
	}
	if !e.limiter.AllowN(now, 1) {
		return false, nil
	}
	e.window = append(e.window, now)
	return true, nil
}

func (m *MemoryRateLimiter) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) > RateWindow {
			delete(m.entries, k)
		}
	}
}
