package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/document"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPingInterval = 25 * time.Second
)

// Options tunes stream timing.
type Options struct {
	PollInterval time.Duration
	PingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	return o
}

// Logger defines the logging interface used by streams.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StreamState is a stage of a connection's lifecycle.
type StreamState int

// Stream states, in order.
const (
	StateConnecting StreamState = iota
	StateReady
	StateStreaming
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	default:
		return "closed"
	}
}

// Stream drives one connection. It is not safe for concurrent use and
// is discarded when Run returns.
type Stream struct {
	scope   Scope
	watcher watcher
	emitter Emitter
	opts    Options
	logger  Logger
	now     func() time.Time

	state     StreamState
	lastFP    document.Fingerprint
	lastKey   []byte
	lastEvent time.Time
}

// NewStream creates a stream for scope writing to emitter.
func NewStream(scope Scope, src Sources, emitter Emitter, opts Options) *Stream {
	s := &Stream{
		scope:   scope,
		emitter: emitter,
		opts:    opts.withDefaults(),
		logger:  noopLogger{},
		now:     time.Now,
		state:   StateConnecting,
	}
	s.watcher = newWatcher(scope, src, func() time.Time { return s.now() })
	return s
}

// SetLogger sets the logger for the stream.
func (s *Stream) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock overrides the time source used for presence and pings.
func (s *Stream) SetClock(now func() time.Time) {
	s.now = now
}

// State returns the stream's lifecycle stage.
func (s *Stream) State() StreamState {
	return s.state
}

// Run streams until ctx is cancelled, the emitter fails or the watched
// device or code disappears. Cancellation is a normal close and returns nil.
func (s *Stream) Run(ctx context.Context) error {
	defer func() { s.state = StateClosed }()

	err := s.run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Stream) run(ctx context.Context) error {
	if err := s.send(ctx, EventReady, s.scope.ready()); err != nil {
		return err
	}
	s.state = StateReady

	stop, err := s.cycle(ctx)
	if stop || err != nil {
		return err
	}
	s.state = StateStreaming

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		stop, err := s.cycle(ctx)
		if stop || err != nil {
			return err
		}

		if s.now().Sub(s.lastEvent) >= s.opts.PingInterval {
			if err := s.send(ctx, EventPing, pingPayload{Time: s.now().Unix()}); err != nil {
				return err
			}
		}
	}
}

// cycle runs one detection pass. stop reports that the stream must end;
// err is set only when the emitter failed.
func (s *Stream) cycle(ctx context.Context) (stop bool, err error) {
	fp, err := s.watcher.fingerprint(ctx)
	if err != nil {
		return s.readFailed(ctx, err)
	}
	if !s.lastFP.Changed(fp) {
		return false, nil
	}

	name, data, err := s.watcher.snapshot(ctx)
	if err != nil {
		return s.readFailed(ctx, err)
	}
	s.lastFP = fp

	encoded, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("encoding live event", "scope", s.scope.String(), "event", name, "error", err)
		return false, nil
	}
	key := encoded
	if k, ok := s.watcher.(dedupKeyer); ok {
		if key, err = json.Marshal(k.dedupKey(data)); err != nil {
			s.logger.Error("encoding live dedup key", "scope", s.scope.String(), "error", err)
			return false, nil
		}
	}
	if s.lastKey != nil && bytes.Equal(key, s.lastKey) {
		s.logger.Debug("live payload unchanged, not sent", "scope", s.scope.String())
		return false, nil
	}

	if err := s.emit(ctx, Event{Name: name, Data: encoded}); err != nil {
		return true, err
	}
	s.lastKey = key
	return false, nil
}

// readFailed ends the stream with an error event when the watched device
// or code is gone and otherwise skips the cycle.
func (s *Stream) readFailed(ctx context.Context, err error) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}

	code, ok := terminal(err)
	if !ok {
		s.logger.Warn("live read failed, retrying next cycle", "scope", s.scope.String(), "error", err)
		return false, nil
	}

	s.logger.Info("live scope gone, closing", "scope", s.scope.String(), "reason", code)
	if sendErr := s.send(ctx, EventError, errorPayload{Code: code, Message: err.Error()}); sendErr != nil {
		return true, sendErr
	}
	return true, nil
}

func (s *Stream) send(ctx context.Context, name string, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", name, err)
	}
	return s.emit(ctx, Event{Name: name, Data: encoded})
}

func (s *Stream) emit(ctx context.Context, ev Event) error {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		return fmt.Errorf("emitting %s event: %w", ev.Name, err)
	}
	s.lastEvent = s.now()
	return nil
}
