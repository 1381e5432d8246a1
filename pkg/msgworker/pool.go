package msgworker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Job es una unidad de trabajo de un chat. Los jobs con el mismo Partition+Key
// se ejecutan en orden de llegada y nunca en paralelo.
type Job struct {
	Partition string // tenant|session
	Key       string // remote contact
	Handler   func(ctx context.Context) error
}

func (j Job) chatKey() string {
	return j.Partition + "|" + j.Key
}

// PoolStats contiene métricas en tiempo real del worker pool
type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	QueuedJobs      int            `json:"queued_jobs"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	ActiveChats     map[string]int `json:"active_chats"` // partition|key -> worker_id
	Uptime          time.Duration  `json:"uptime"`
}

// Pool reparte jobs entre workers con cola propia; el shard se elige por hash del chat.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    atomic.Bool
	// dispatchMu protege el envío a colas frente al cierre en Stop.
	dispatchMu sync.RWMutex

	totalDispatched atomic.Int64
	totalProcessed  atomic.Int64
	totalDropped    atomic.Int64
	totalErrors     atomic.Int64

	activeMu    sync.Mutex
	activeChats map[string]int // chatKey -> pending jobs
	startTime   time.Time
}

type worker struct {
	id           int
	queue        chan Job
	isProcessing atomic.Bool
	pool         *Pool
}

// NewPool crea un pool de numWorkers workers con colas de queueSize.
func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		numWorkers:  numWorkers,
		queueSize:   queueSize,
		workers:     make([]*worker, numWorkers),
		activeChats: make(map[string]int),
	}
}

// Start arranca los workers. Los handlers reciben ctx sin su cancelación para
// que el drenaje en Stop termine lo que ya estaba encolado.
func (p *Pool) Start(ctx context.Context) {
	p.startTime = time.Now()
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.numWorkers; i++ {
		w := &worker{id: i, queue: make(chan Job, p.queueSize), pool: p}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run(jobCtx)
	}

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// Dispatch encola el job sin bloquear. Devuelve ErrQueueFull cuando el shard
// está lleno, útil para aplicar backpressure en endpoints HTTP.
func (p *Pool) Dispatch(job Job) error {
	p.dispatchMu.RLock()
	defer p.dispatchMu.RUnlock()

	if p.stopped.Load() {
		p.totalDropped.Add(1)
		return ErrPoolStopped
	}

	shard := p.shardFor(job.chatKey())
	key := job.chatKey()

	p.activeMu.Lock()
	p.activeChats[key]++
	p.activeMu.Unlock()

	select {
	case p.workers[shard].queue <- job:
		p.totalDispatched.Add(1)
		return nil
	default:
	}

	p.release(key)
	p.totalDropped.Add(1)
	logrus.Warnf("[MSG_WORKER_POOL] Worker %d queue full, dropping job for %s", shard, key)
	return ErrQueueFull
}

// Stop cierra las colas y espera a que los workers procesen lo pendiente.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.dispatchMu.Lock()
		p.stopped.Store(true)
		for _, w := range p.workers {
			if w != nil {
				close(w.queue)
			}
		}
		p.dispatchMu.Unlock()

		logrus.Info("[MSG_WORKER_POOL] Draining workers...")
		p.wg.Wait()
		logrus.Info("[MSG_WORKER_POOL] All workers stopped")
	})
}

func (p *Pool) shardFor(chatKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatKey))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) release(key string) {
	p.activeMu.Lock()
	if n := p.activeChats[key] - 1; n > 0 {
		p.activeChats[key] = n
	} else {
		delete(p.activeChats, key)
	}
	p.activeMu.Unlock()
}

// Stats retorna estadísticas en tiempo real del pool
func (p *Pool) Stats() PoolStats {
	stats := PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: p.totalDispatched.Load(),
		TotalProcessed:  p.totalProcessed.Load(),
		TotalDropped:    p.totalDropped.Load(),
		TotalErrors:     p.totalErrors.Load(),
		ActiveChats:     make(map[string]int),
	}
	if !p.startTime.IsZero() {
		stats.Uptime = time.Since(p.startTime)
	}
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		if w.isProcessing.Load() {
			stats.ActiveWorkers++
		}
		stats.QueuedJobs += len(w.queue)
	}

	p.activeMu.Lock()
	for k := range p.activeChats {
		stats.ActiveChats[k] = p.shardFor(k)
	}
	p.activeMu.Unlock()
	return stats
}

func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	for job := range w.queue {
		w.process(ctx, job)
	}
	logrus.Debugf("[MSG_WORKER_POOL] Worker %d shutting down", w.id)
}

func (w *worker) process(ctx context.Context, job Job) {
	key := job.chatKey()
	w.isProcessing.Store(true)
	defer func() {
		if r := recover(); r != nil {
			w.pool.totalErrors.Add(1)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for %s: %v", w.id, key, r)
		}
		w.isProcessing.Store(false)
		w.pool.release(key)
		w.pool.totalProcessed.Add(1)
	}()

	if err := job.Handler(ctx); err != nil {
		w.pool.totalErrors.Add(1)
		logrus.WithError(err).Errorf("[MSG_WORKER_POOL] Worker %d job failed for %s", w.id, key)
	}
}
