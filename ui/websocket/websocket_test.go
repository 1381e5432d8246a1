package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []BroadcastMessage
	closed   bool
	failNext bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType != websocket.TextMessage {
		return nil
	}
	if f.failNext {
		return errors.New("broken pipe")
	}
	var msg BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) received() []BroadcastMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BroadcastMessage(nil), f.messages...)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(nil, "node-a")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h, cancel
}

func TestHub_DeliversOnlyToTenant(t *testing.T) {
	h, _ := startHub(t)
	a, b := &fakeConn{}, &fakeConn{}
	h.register <- registration{conn: a, tenantID: "t1"}
	h.register <- registration{conn: b, tenantID: "t2"}

	h.Notify("t1", "NEW_MESSAGE", map[string]string{"conversation_id": "c1"})

	require.Eventually(t, func() bool { return len(a.received()) == 1 }, time.Second, 5*time.Millisecond)
	msg := a.received()[0]
	assert.Equal(t, "NEW_MESSAGE", msg.Code)
	assert.Equal(t, "t1", msg.TenantID)
	assert.Empty(t, msg.SenderID)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, b.received())
}

func TestHub_RemoteEvents(t *testing.T) {
	h, _ := startHub(t)
	c := &fakeConn{}
	h.register <- registration{conn: c, tenantID: "t1"}

	own, _ := json.Marshal(BroadcastMessage{Code: "SESSION_QR", TenantID: "t1", SenderID: "node-a"})
	h.handleRemote(own)
	h.handleRemote([]byte("not json"))
	remote, _ := json.Marshal(BroadcastMessage{Code: "HUMAN_TAKEOVER", TenantID: "t1", SenderID: "node-b"})
	h.handleRemote(remote)

	require.Eventually(t, func() bool { return len(c.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "HUMAN_TAKEOVER", c.received()[0].Code)
}

func TestHub_WriteErrorDropsConnection(t *testing.T) {
	h, _ := startHub(t)
	broken, healthy := &fakeConn{failNext: true}, &fakeConn{}
	h.register <- registration{conn: broken, tenantID: "t1"}
	h.register <- registration{conn: healthy, tenantID: "t1"}

	h.Notify("t1", "NEW_MESSAGE", nil)
	require.Eventually(t, broken.isClosed, time.Second, 5*time.Millisecond)

	h.Notify("t1", "MESSAGE_STATUS", nil)
	require.Eventually(t, func() bool { return len(healthy.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, broken.received())
}

func TestHub_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	c := &fakeConn{}
	h.register <- registration{conn: c, tenantID: "t1"}

	cancel()
	<-h.done
	assert.True(t, c.isClosed())
}
