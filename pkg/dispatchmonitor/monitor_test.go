package dispatchmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_RingBufferKeepsNewest(t *testing.T) {
	m := New(3, 0)
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		m.Record(Event{TenantID: "t1", ConversationID: c, Stage: StageInbound, Status: StatusOK})
	}

	stats := m.Stats("")
	assert.Equal(t, int64(5), stats.TotalInbound)
	if assert.Len(t, stats.RecentEvents, 3) {
		assert.Equal(t, "c", stats.RecentEvents[0].ConversationID)
		assert.Equal(t, "e", stats.RecentEvents[2].ConversationID)
	}
}

func TestMonitor_CountersAndTenantFilter(t *testing.T) {
	m := New(10, 0)
	m.Record(Event{TenantID: "t1", Stage: StageAIRequest, Status: StatusOK})
	m.Record(Event{TenantID: "t1", Stage: StageAIResponse, Status: StatusOK})
	m.Record(Event{TenantID: "t2", Stage: StageAIResponse, Status: StatusError})
	m.Record(Event{TenantID: "t2", Stage: StageGate, Status: StatusSkipped, Outcome: "skipped_takeover"})
	m.Record(Event{TenantID: "t1", Stage: StageOutbound, Status: StatusOK})

	stats := m.Stats("t2")
	assert.Equal(t, int64(1), stats.TotalAIRequests)
	assert.Equal(t, int64(1), stats.TotalAIReplies)
	assert.Equal(t, int64(1), stats.TotalOutbound)
	assert.Equal(t, int64(1), stats.TotalErrors)
	assert.Equal(t, int64(1), stats.TotalSkipped)
	assert.Len(t, stats.RecentEvents, 2)
}

func TestMonitor_TTLHidesOldEvents(t *testing.T) {
	m := New(10, time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now.Add(-2 * time.Minute) }
	m.Record(Event{ConversationID: "old"})
	m.now = func() time.Time { return now }
	m.Record(Event{ConversationID: "new"})

	events := m.Stats("").RecentEvents
	if assert.Len(t, events, 1) {
		assert.Equal(t, "new", events[0].ConversationID)
	}
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() { m.Record(Event{}) })
}
