package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shwndea/automated-padc-processor/internal/config"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

type frame struct {
	kind int
	data []byte
}

type mockConn struct {
	mu     sync.Mutex
	reads  []frame
	writes []frame
	closed bool
}

func (m *mockConn) WriteMessage(kind int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("closed")
	}
	m.writes = append(m.writes, frame{kind: kind, data: data})
	return nil
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reads) == 0 {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
	f := m.reads[0]
	m.reads = m.reads[1:]
	return f.kind, f.data, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) SetReadDeadline(time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }
func (m *mockConn) SetReadLimit(int64)               {}
func (m *mockConn) SetPongHandler(func(string) error) {}
func (m *mockConn) RemoteAddr() string               { return "127.0.0.1:9999" }

func (m *mockConn) written() []frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame(nil), m.writes...)
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestClient(t *testing.T, hub *Hub) (*Client, *mockConn) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	conn := &mockConn{}
	return NewClient(hub, conn, "trace-1", config.WebSocketConfig{}, logger), conn
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHubStartStopIdempotent(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	hub.Start()
	hub.Stop()
	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubRegisterSendsConnectionMessage(t *testing.T) {
	hub := newTestHub(t)
	c, _ := newTestClient(t, hub)

	require.True(t, hub.Register(c))
	m := receive(t, c)

	assert.Equal(t, TypeConnection, m.Type)
	assert.Equal(t, "trace-1", m.TraceID)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, int64(1), hub.Stats().TotalConnections)
}

func TestHubBroadcastUpdate(t *testing.T) {
	hub := newTestHub(t)
	c, _ := newTestClient(t, hub)
	require.True(t, hub.Register(c))
	receive(t, c)

	hub.BroadcastUpdate("operation:snapshot", "op-1", "running", map[string]int{"progress": 40})
	m := receive(t, c)

	assert.Equal(t, "operation:snapshot", m.Type)
	assert.Equal(t, "op-1", m.Step)
	assert.Equal(t, "running", m.Status)
	assert.Equal(t, map[string]interface{}{"progress": float64(40)}, m.Data)
	assert.NotEmpty(t, m.Timestamp)

	require.Eventually(t, func() bool { return hub.Stats().MessagesSent == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubBroadcastError(t *testing.T) {
	hub := newTestHub(t)
	c, _ := newTestClient(t, hub)
	require.True(t, hub.Register(c))
	receive(t, c)

	hub.BroadcastError("extract", "no workbook loaded", true)
	m := receive(t, c)

	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, "extract", m.Step)
	assert.Equal(t, "failed", m.Status)
}

func TestHubUnregisterClosesQueue(t *testing.T) {
	hub := newTestHub(t)
	c, _ := newTestClient(t, hub)
	require.True(t, hub.Register(c))
	receive(t, c)

	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-c.send
	assert.False(t, ok)

	// A second unregister is a no-op.
	hub.Unregister(c)
}

func TestHubStopClosesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	c, _ := newTestClient(t, hub)
	require.True(t, hub.Register(c))
	receive(t, c)

	hub.Stop()

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, hub.Register(c), "register after stop")
}

func TestHubBroadcastDropsWhenQueueFull(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger) // not started, nothing drains the queue

	for i := 0; i < broadcastQueue+10; i++ {
		hub.BroadcastUpdate("operation:snapshot", "op", "running", nil)
	}

	assert.Equal(t, int64(10), hub.Stats().Dropped)
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := newTestHub(t)
	c, _ := newTestClient(t, hub)
	require.True(t, hub.Register(c))
	require.Eventually(t, func() bool { return len(c.send) == 1 }, time.Second, 5*time.Millisecond)
	for len(c.send) < cap(c.send) {
		c.send <- []byte("{}")
	}

	hub.BroadcastUpdate("operation:snapshot", "op", "running", nil)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClientWritePump(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	c, conn := newTestClient(t, hub)

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	c.send <- []byte(`{"type":"x"}`)
	close(c.send)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}

	frames := conn.written()
	require.Len(t, frames, 2)
	assert.Equal(t, websocket.TextMessage, frames[0].kind)
	assert.JSONEq(t, `{"type":"x"}`, string(frames[0].data))
	assert.Equal(t, websocket.CloseMessage, frames[1].kind)
	assert.True(t, conn.isClosed())
}

func TestClientReadPumpUnregistersOnClose(t *testing.T) {
	hub := newTestHub(t)
	c, conn := newTestClient(t, hub)
	conn.reads = []frame{{kind: websocket.TextMessage, data: heartbeat}}
	require.True(t, hub.Register(c))
	receive(t, c)

	c.ReadPump()

	assert.True(t, conn.isClosed())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewClientTiming(t *testing.T) {
	hub := NewHub(nil)
	conn := &mockConn{}

	c := NewClient(hub, conn, "", config.WebSocketConfig{}, nil)
	assert.Equal(t, defaultPongWait, c.pongWait)
	assert.Equal(t, defaultPongWait*9/10, c.pingPeriod)

	c = NewClient(hub, conn, "", config.WebSocketConfig{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}, nil)
	assert.Equal(t, 9*time.Second, c.pingPeriod)

	c = NewClient(hub, conn, "", config.WebSocketConfig{PongWait: 10 * time.Second, PingPeriod: 5 * time.Second}, nil)
	assert.Equal(t, 5*time.Second, c.pingPeriod)
	assert.Equal(t, "127.0.0.1:9999", c.remoteAddr)
	assert.NotEmpty(t, c.ID())
}
