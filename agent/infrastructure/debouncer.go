package infrastructure

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/sirupsen/logrus"
)

// ErrShuttingDown se devuelve al encolar durante el apagado.
var ErrShuttingDown = errors.New("debouncer is shutting down")

type FlushFunc func(ctx context.Context, pending domain.PendingReply)

type debounceEntry struct {
	pending domain.PendingReply
	timer   *time.Timer
}

type inflightEntry struct {
	cancel  context.CancelCauseFunc
	token   uint64
	pending domain.PendingReply
}

// Debouncer agrupa los mensajes de una conversación que llegan dentro de la
// ventana y ejecuta flushFn una vez con todos ellos. Un mensaje nuevo cancela
// la generación en curso de esa conversación con causa domain.ErrSuperseded.
type Debouncer struct {
	mu       sync.Mutex
	entries  map[string]*debounceEntry
	inflight map[string]inflightEntry
	seq      uint64
	closed   bool
	wg       sync.WaitGroup
	flushFn  FlushFunc
}

func NewDebouncer(flushFn FlushFunc) *Debouncer {
	return &Debouncer{
		entries:  make(map[string]*debounceEntry),
		inflight: make(map[string]inflightEntry),
		flushFn:  flushFn,
	}
}

func (d *Debouncer) Enqueue(pending domain.PendingReply, delay time.Duration) error {
	key := pending.ConversationID

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrShuttingDown
	}

	// Cancelar cualquier generación "en vuelo" para este mismo chat; sus
	// mensajes vuelven a la ventana para responderse junto con el nuevo.
	e, ok := d.entries[key]
	if prev, running := d.inflight[key]; running {
		prev.cancel(domain.ErrSuperseded)
		delete(d.inflight, key)
		if !ok {
			carried := prev.pending
			carried.MessageIDs = slices.Clone(carried.MessageIDs)
			carried.Texts = slices.Clone(carried.Texts)
			e, ok = &debounceEntry{pending: carried}, true
			d.entries[key] = e
		}
	}

	if !ok {
		e = &debounceEntry{pending: pending}
		d.entries[key] = e
	} else {
		e.pending.Merge(pending)
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	if delay <= 0 {
		e.timer = nil
		d.mu.Unlock()
		d.flush(key)
		return nil
	}
	e.timer = time.AfterFunc(delay, func() { d.flush(key) })
	d.mu.Unlock()
	return nil
}

// Pending reports how many conversations are waiting for their window to close.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Debouncer) flush(key string) {
	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)

	ctx, cancel := context.WithCancelCause(context.Background())
	d.seq++
	token := d.seq
	d.inflight[key] = inflightEntry{cancel: cancel, token: token, pending: e.pending}
	d.wg.Add(1)
	d.mu.Unlock()

	logrus.WithField("conversation", key).Debugf("[DEBOUNCER] Flushing %d message(s)", len(e.pending.MessageIDs))

	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			if cur, ok := d.inflight[key]; ok && cur.token == token {
				delete(d.inflight, key)
			}
			d.mu.Unlock()
			cancel(nil)
		}()
		d.flushFn(ctx, e.pending)
	}()
}

// Shutdown deja de aceptar mensajes, procesa ya las ventanas pendientes y espera
// a que terminen. Si ctx vence antes, cancela lo que siga en curso.
func (d *Debouncer) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	keys := make([]string, 0, len(d.entries))
	for k, e := range d.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		keys = append(keys, k)
	}
	d.mu.Unlock()

	if len(keys) > 0 {
		logrus.Infof("[DEBOUNCER] Draining %d pending conversation(s)", len(keys))
	}
	for _, k := range keys {
		d.flush(k)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		for _, in := range d.inflight {
			in.cancel(context.Cause(ctx))
		}
		d.mu.Unlock()
		return ctx.Err()
	}
}
