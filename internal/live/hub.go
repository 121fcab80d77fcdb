package live

import (
	"context"
	"sync"
)

// Stats counts open streams per scope.
type Stats struct {
	Global  int `json:"global"`
	Device  int `json:"device"`
	Pairing int `json:"pairing"`
}

// Total returns the number of open streams.
func (s Stats) Total() int {
	return s.Global + s.Device + s.Pairing
}

// Hub creates streams and counts the ones still running.
//
// It holds no per-stream state beyond the counters.
type Hub struct {
	src    Sources
	opts   Options
	logger Logger

	mu     sync.Mutex
	counts map[ScopeKind]int
}

// NewHub creates a hub serving streams from src.
func NewHub(src Sources, opts Options) *Hub {
	return &Hub{
		src:    src,
		opts:   opts.withDefaults(),
		logger: noopLogger{},
		counts: make(map[ScopeKind]int),
	}
}

// SetLogger sets the logger for the hub and the streams it creates.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// Options returns the effective stream timing.
func (h *Hub) Options() Options {
	return h.opts
}

// Serve runs a stream for scope on emitter until it ends.
func (h *Hub) Serve(ctx context.Context, scope Scope, emitter Emitter) error {
	stream := NewStream(scope, h.src, emitter, h.opts)
	stream.SetLogger(h.logger)

	h.track(scope.Kind, 1)
	defer h.track(scope.Kind, -1)

	h.logger.Debug("live stream opened", "scope", scope.String())
	err := stream.Run(ctx)
	h.logger.Debug("live stream closed", "scope", scope.String(), "error", err)
	return err
}

// Stats returns the current stream counts.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Global:  h.counts[ScopeGlobal],
		Device:  h.counts[ScopeDevice],
		Pairing: h.counts[ScopePairing],
	}
}

func (h *Hub) track(kind ScopeKind, delta int) {
	h.mu.Lock()
	h.counts[kind] += delta
	h.mu.Unlock()
}
