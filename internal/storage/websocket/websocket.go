// Package websocket streams the session live to a proctoring dashboard.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gazewatch/gazewatch/internal/config"
	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/gazewatch/gazewatch/pkg/streaming"
)

// Backend streams session data over WebSocket.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

func (b *Backend) Name() string { return "websocket" }

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns the number of messages dropped because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartSession sends the session metadata and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// RecordCalibration sends the calibration result (fire-and-forget).
func (b *Backend) RecordCalibration(c *core.Calibration) error {
	data, err := marshalEnvelope(streaming.TypeCalibration, c)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// RecordStatus sends one frame's status (fire-and-forget).
func (b *Backend) RecordStatus(e *core.StatusEvent) error {
	data, err := marshalEnvelope(streaming.TypeStatus, streaming.NewStatusPayload(e))
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndSession sends the summary and waits for server ack.
func (b *Backend) EndSession(summary *core.SessionSummary) error {
	data, err := marshalEnvelope(streaming.TypeEndSession, summary)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}
