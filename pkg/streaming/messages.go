// Package streaming defines the live session protocol spoken over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/gazewatch/gazewatch/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeCalibration  = "calibration"
	TypeStatus       = "status"
	TypeEndSession   = "end_session"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session metadata.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// StatusPayload is one classified frame, flattened for live dashboards.
type StatusPayload struct {
	SessionID string   `json:"sessionId"`
	Seq       uint64   `json:"seq"`
	TimeMs    int64    `json:"t"`
	Status    string   `json:"status"`
	Display   string   `json:"display"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
}

// NewStatusPayload flattens e.
func NewStatusPayload(e *core.StatusEvent) StatusPayload {
	p := StatusPayload{
		SessionID: e.SessionID,
		Seq:       e.Seq,
		TimeMs:    e.Time.UnixMilli(),
		Status:    e.Status.String(),
		Display:   e.Status.DisplayText(),
	}
	if e.HasRatio {
		x, y := e.Ratio.X, e.Ratio.Y
		p.X, p.Y = &x, &y
	}
	return p
}
