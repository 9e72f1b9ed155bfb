// Package protocol defines the websocket wire contract: the message
// envelope and the closed catalogs of client commands and server events.
package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// Envelope is the frame exchanged in both directions. Timestamp is unix
// seconds with fractional precision.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp float64         `json:"timestamp"`
}

var ErrMissingType = errors.New("message has no type field")

// Decode parses a raw inbound frame. The payload inside Data is left
// untouched for the command handlers to interpret.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// Encode wraps an event payload in an envelope stamped with the current
// time and marshals it for the transport.
func Encode(event EventType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      string(event),
		Data:      raw,
		Timestamp: UnixTimestamp(time.Now()),
	})
}

// UnixTimestamp converts a time to the wire's float-seconds representation.
func UnixTimestamp(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}
