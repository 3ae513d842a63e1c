// Package wsserver exposes the key-event endpoint used by an external input
// layer.
//
// # Protocol
//
// All frames are JSON text messages with a "type" field. On connect the
// server sends
//
//	{"type":"hello","client_id":"<uuid>"}
//
// The client submits key events
//
//	{"type":"key","id":"42","modifiers":64,"keysym":100,"dry_run":false}
//
// and receives one result per event
//
//	{"type":"match","id":"42","matched":true,"origin":"super + d","modifiers":64,"keysym":100}
//
// An id is generated when the client omits it. Malformed input yields
// {"type":"error",...}. Daemon warnings are pushed as {"type":"log",...}.
package wsserver

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types.
const (
	TypeHello = "hello"
	TypeKey   = "key"
	TypeMatch = "match"
	TypeError = "error"
	TypeLog   = "log"
)

// HelloMessage greets a newly connected client.
type HelloMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// KeyEvent is a key press reported by the client.
type KeyEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Modifiers uint16 `json:"modifiers"`
	Keysym    uint32 `json:"keysym"`
	// DryRun asks for the lookup only; the bound action is not run.
	DryRun bool `json:"dry_run,omitempty"`
}

// MatchResult answers a KeyEvent.
type MatchResult struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Matched   bool   `json:"matched"`
	Origin    string `json:"origin,omitempty"`
	Modifiers uint16 `json:"modifiers"`
	Keysym    uint32 `json:"keysym"`
	// Error is set when the event was matched but could not be queued.
	Error string `json:"error,omitempty"`
}

// ErrorMessage reports a malformed client frame.
type ErrorMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// LogMessage carries a daemon log record to the client.
type LogMessage struct {
	Type    string            `json:"type"`
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Source  string            `json:"source,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// DecodeKeyEvent parses a client frame. Only "key" messages are accepted.
func DecodeKeyEvent(raw []byte) (KeyEvent, error) {
	var ev KeyEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return KeyEvent{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if ev.Type != TypeKey {
		return ev, fmt.Errorf("unsupported message type %q", ev.Type)
	}
	if ev.Keysym == 0 {
		return ev, fmt.Errorf("keysym is required")
	}
	return ev, nil
}
