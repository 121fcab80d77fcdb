package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage is the frame sent for each event.
type WSMessage struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// WSOptions tunes a WebSocket transport.
type WSOptions struct {
	// WriteTimeout bounds one frame write.
	WriteTimeout time.Duration

	// MaxMessageSize limits inbound frames.
	MaxMessageSize int64
}

// WSEmitter writes events as JSON text frames on an upgraded connection.
type WSEmitter struct {
	conn   *websocket.Conn
	opts   WSOptions
	logger Logger

	mu sync.Mutex
}

// NewWSEmitter wraps an upgraded connection.
func NewWSEmitter(conn *websocket.Conn, opts WSOptions) *WSEmitter {
	return &WSEmitter{conn: conn, opts: opts, logger: noopLogger{}}
}

// SetLogger sets the logger for the emitter.
func (e *WSEmitter) SetLogger(logger Logger) {
	e.logger = logger
}

// Emit writes one event frame.
func (e *WSEmitter) Emit(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opts.WriteTimeout > 0 {
		//nolint:errcheck // Best-effort deadline; write error caught below
		e.conn.SetWriteDeadline(time.Now().Add(e.opts.WriteTimeout))
	}
	return e.conn.WriteJSON(WSMessage{
		Type:      ev.Name,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   ev.Data,
	})
}

// Watch returns a context that is cancelled when the peer goes away.
//
// Clients have nothing to say on this channel, so inbound frames are
// read only to process control messages and detect the close.
func (e *WSEmitter) Watch(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	if e.opts.MaxMessageSize > 0 {
		e.conn.SetReadLimit(e.opts.MaxMessageSize)
	}

	go func() {
		defer cancel()
		for {
			if _, _, err := e.conn.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					e.logger.Warn("websocket read error", "error", err)
				} else {
					e.logger.Debug("websocket closed", "error", err)
				}
				return
			}
		}
	}()

	return ctx, cancel
}

// Close sends a close frame and closes the connection.
func (e *WSEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	//nolint:errcheck // Best-effort close message
	e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return e.conn.Close()
}
