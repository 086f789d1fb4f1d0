package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/internal/storage"
	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/gazewatch/gazewatch/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

type received struct {
	conn int
	env  streaming.Envelope
}

type messageLog struct {
	mu       sync.Mutex
	messages []received
	secrets  []string
}

func (m *messageLog) add(conn int, env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, received{conn: conn, env: env})
}

func (m *messageLog) types(conn int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.messages {
		if conn < 0 || r.conn == conn {
			out = append(out, r.env.Type)
		}
	}
	return out
}

func (m *messageLog) payload(msgType string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.messages {
		if r.env.Type == msgType {
			return r.env.Payload
		}
	}
	return nil
}

type serverOptions struct {
	noAck bool
	// dropAfter closes the first connection after it received this many messages.
	dropAfter int
}

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks start_session/end_session.
func testServer(t *testing.T, opts serverOptions) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}
	var (
		mu    sync.Mutex
		conns int
	)

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		mu.Lock()
		conns++
		id := conns
		mu.Unlock()
		ml.mu.Lock()
		ml.secrets = append(ml.secrets, r.URL.Query().Get("secret"))
		ml.mu.Unlock()

		count := 0
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(id, env)
			count++

			if !opts.noAck && (env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession) {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
			if id == 1 && opts.dropAfter > 0 && count == opts.dropAfter {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, ml
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamSession(t *testing.T) {
	srv, ml := testServer(t, serverOptions{})
	b := New(config.WebSocketConfig{URL: wsURL(srv), Secret: "s3cret"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "s1", Subject: "jdoe"}))
	require.NoError(t, b.RecordCalibration(&core.Calibration{SessionID: "s1", Region: core.AcceptanceRegion{MinX: 0.1, MaxX: 0.9, MinY: 0.2, MaxY: 0.8}}))
	require.NoError(t, b.RecordStatus(&core.StatusEvent{SessionID: "s1", Seq: 1, Status: core.Inside, HasRatio: true, Ratio: core.GazeRatio{X: 0.5, Y: 0.4}}))
	require.NoError(t, b.RecordStatus(&core.StatusEvent{SessionID: "s1", Seq: 2, Status: core.NoFace}))
	summary := core.NewSessionSummary("s1")
	summary.Observe(core.Inside)
	require.NoError(t, b.EndSession(&summary))

	assert.Equal(t, []string{
		streaming.TypeStartSession,
		streaming.TypeCalibration,
		streaming.TypeStatus,
		streaming.TypeStatus,
		streaming.TypeEndSession,
	}, ml.types(-1))
	assert.Equal(t, []string{"s3cret"}, ml.secrets)

	var status streaming.StatusPayload
	require.NoError(t, json.Unmarshal(ml.payload(streaming.TypeStatus), &status))
	assert.Equal(t, "INSIDE", status.Status)
	assert.Equal(t, "LOOKING INSIDE SCREEN", status.Display)
	require.NotNil(t, status.X)
	assert.Equal(t, 0.5, *status.X)

	var end core.SessionSummary
	require.NoError(t, json.Unmarshal(ml.payload(streaming.TypeEndSession), &end))
	assert.Equal(t, uint64(1), end.Counts[core.Inside])
	assert.Zero(t, b.Dropped())
}

func TestNewStatusPayload_NoRatio(t *testing.T) {
	p := streaming.NewStatusPayload(&core.StatusEvent{Status: core.NoFace, Time: time.UnixMilli(1234)})
	assert.Nil(t, p.X)
	assert.Nil(t, p.Y)
	assert.Equal(t, int64(1234), p.TimeMs)
	assert.Equal(t, "NO FACE DETECTED", p.Display)
}

func TestAckTimeout(t *testing.T) {
	srv, _ := testServer(t, serverOptions{noAck: true})
	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	data, err := marshalEnvelope(streaming.TypeStartSession, nil)
	require.NoError(t, err)
	err = b.conn.sendAndWait(data, streaming.TypeStartSession, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestReconnectReplaysStart(t *testing.T) {
	prev := initialBackoff
	initialBackoff = 10 * time.Millisecond
	defer func() { initialBackoff = prev }()

	srv, ml := testServer(t, serverOptions{dropAfter: 2})
	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "s1"}))
	require.NoError(t, b.RecordStatus(&core.StatusEvent{SessionID: "s1", Seq: 1, Status: core.Inside}))

	require.Eventually(t, func() bool { return b.conn.reconnects.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.RecordStatus(&core.StatusEvent{SessionID: "s1", Seq: 2, Status: core.Outside}))
	require.Eventually(t, func() bool {
		types := ml.types(2)
		return len(types) >= 2 && types[0] == streaming.TypeStartSession && types[len(types)-1] == streaming.TypeStatus
	}, 5*time.Second, 10*time.Millisecond)
}

func TestInit_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	b := New(config.WebSocketConfig{URL: url}, nil)
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, serverOptions{})
	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())

	err := b.EndSession(&core.SessionSummary{})
	assert.Error(t, err, "no ack after close")
}
