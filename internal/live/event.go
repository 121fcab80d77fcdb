package live

import (
	"context"
	"encoding/json"
)

// Event names.
const (
	EventReady  = "ready"
	EventState  = "state"
	EventDevice = "device"
	EventPair   = "pair"
	EventPing   = "ping"
	EventError  = "error"
)

// Error codes carried by error events.
const (
	CodeDeviceNotFound = "device-not-found"
	CodeCodeInvalid    = "code-invalid"
)

// Event is one message on a connection. Data is already encoded.
type Event struct {
	Name string
	Data json.RawMessage
}

// Emitter writes events to one client. An error means the connection is
// unusable and the stream stops.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, ev Event) error

// Emit calls f(ctx, ev).
func (f EmitterFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pingPayload struct {
	Time int64 `json:"time"`
}
