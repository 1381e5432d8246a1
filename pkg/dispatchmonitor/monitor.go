package dispatchmonitor

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	StageInbound    = "inbound"
	StageGate       = "gate"
	StageDebounce   = "debounce"
	StageAIRequest  = "ai_request"
	StageAIResponse = "ai_response"
	StageOutbound   = "outbound"
)

const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

type Event struct {
	Timestamp      time.Time         `json:"timestamp"`
	TenantID       string            `json:"tenant_id"`
	SessionID      string            `json:"session_id"`
	ConversationID string            `json:"conversation_id"`
	Provider       string            `json:"provider,omitempty"`
	Stage          string            `json:"stage"`
	Status         string            `json:"status"`
	Outcome        string            `json:"outcome,omitempty"`
	Error          string            `json:"error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	DurationMs     int64             `json:"duration_ms,omitempty"`
}

type Stats struct {
	TotalInbound    int64   `json:"total_inbound"`
	TotalAIRequests int64   `json:"total_ai_requests"`
	TotalAIReplies  int64   `json:"total_ai_replies"`
	TotalOutbound   int64   `json:"total_outbound"`
	TotalSkipped    int64   `json:"total_skipped"`
	TotalErrors     int64   `json:"total_errors"`
	RecentEvents    []Event `json:"recent_events"`
}

// Monitor guarda en un buffer circular los últimos eventos del pipeline de respuesta.
type Monitor struct {
	ttl time.Duration
	now func() time.Time

	eventsMu sync.Mutex
	events   []Event
	idx      int
	count    int

	totalInbound    atomic.Int64
	totalAIRequests atomic.Int64
	totalAIReplies  atomic.Int64
	totalOutbound   atomic.Int64
	totalSkipped    atomic.Int64
	totalErrors     atomic.Int64
}

// New crea un monitor; ttl 0 conserva los eventos hasta que el buffer los pise.
func New(size int, ttl time.Duration) *Monitor {
	if size <= 0 {
		size = 200
	}
	return &Monitor{
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		events: make([]Event, size),
	}
}

func (m *Monitor) Record(e Event) {
	if m == nil {
		return
	}
	e.Timestamp = m.now()

	switch e.Stage {
	case StageInbound:
		m.totalInbound.Add(1)
	case StageAIRequest:
		m.totalAIRequests.Add(1)
	case StageAIResponse:
		if e.Status == StatusOK {
			m.totalAIReplies.Add(1)
		}
	case StageOutbound:
		if e.Status == StatusOK {
			m.totalOutbound.Add(1)
		}
	}
	switch e.Status {
	case StatusError:
		m.totalErrors.Add(1)
	case StatusSkipped:
		m.totalSkipped.Add(1)
	}

	m.eventsMu.Lock()
	m.events[m.idx] = e
	m.idx = (m.idx + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	m.eventsMu.Unlock()
}

// Stats devuelve los contadores y los eventos vigentes, del más antiguo al más reciente.
// tenantID vacío no filtra.
func (m *Monitor) Stats(tenantID string) Stats {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()

	res := make([]Event, 0, m.count)
	var cutoff time.Time
	if m.ttl > 0 {
		cutoff = m.now().Add(-m.ttl)
	}
	start := (m.idx - m.count) % len(m.events)
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		e := m.events[(start+i)%len(m.events)]
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		if tenantID != "" && e.TenantID != tenantID {
			continue
		}
		res = append(res, e)
	}

	return Stats{
		TotalInbound:    m.totalInbound.Load(),
		TotalAIRequests: m.totalAIRequests.Load(),
		TotalAIReplies:  m.totalAIReplies.Load(),
		TotalOutbound:   m.totalOutbound.Load(),
		TotalSkipped:    m.totalSkipped.Load(),
		TotalErrors:     m.totalErrors.Load(),
		RecentEvents:    res,
	}
}
