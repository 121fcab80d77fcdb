package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SSEEmitter writes events as Server-Sent Events.
type SSEEmitter struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

// NewSSEEmitter sends the event-stream headers and returns an emitter
// for w. A zero writeTimeout disables per-event deadlines.
func NewSSEEmitter(w http.ResponseWriter, writeTimeout time.Duration) *SSEEmitter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &SSEEmitter{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
	}
}

// Emit writes one event and flushes it.
func (e *SSEEmitter) Emit(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.writeTimeout > 0 {
		err := e.rc.SetWriteDeadline(time.Now().Add(e.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("setting write deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
		return err
	}
	return e.rc.Flush()
}
