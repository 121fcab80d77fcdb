package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/live"
)

// handleLiveSSE streams live events as Server-Sent Events.
//
// Query parameters (mutually exclusive):
//   - device: follow one device's effective configuration
//   - pair: follow a pairing code until it is claimed
//
// With neither, the stream carries the whole fleet state.
func (s *Server) handleLiveSSE(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.liveScope(w, r)
	if !ok {
		return
	}

	// The server write timeout is for ordinary requests; the emitter sets
	// a fresh deadline before every event instead.
	err := http.NewResponseController(w).SetWriteDeadline(time.Time{})
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clearing live write deadline", "error", err)
	}

	emitter := live.NewSSEEmitter(w, s.liveCfg.WriteTimeout())
	if err := s.hub.Serve(r.Context(), scope, emitter); err != nil {
		s.logger.Debug("live stream ended", "scope", scope.String(), "error", err)
	}
}

// handleLiveWS streams the same events as handleLiveSSE over a WebSocket.
func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.liveScope(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	emitter := live.NewWSEmitter(conn, live.WSOptions{
		WriteTimeout:   s.liveCfg.WriteTimeout(),
		MaxMessageSize: int64(s.liveCfg.MaxMessageSize),
	})
	emitter.SetLogger(s.logger)
	defer emitter.Close() //nolint:errcheck // connection is finished either way

	ctx, cancel := emitter.Watch(r.Context())
	defer cancel()

	if err := s.hub.Serve(ctx, scope, emitter); err != nil {
		s.logger.Debug("live stream ended", "scope", scope.String(), "error", err)
	}
}

// liveScope parses ?device= and ?pair=, writing the error response when
// they are invalid.
func (s *Server) liveScope(w http.ResponseWriter, r *http.Request) (live.Scope, bool) {
	q := r.URL.Query()
	scope, err := live.ParseScope(q.Get("device"), q.Get("pair"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return live.Scope{}, false
	}
	return scope, true
}
