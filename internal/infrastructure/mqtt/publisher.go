package mqtt

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
)

// eventBufferSize is the default buffer for queued registry events.
const eventBufferSize = 256

// Publisher is the subset of Client used to publish events.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventPublisher forwards registry events to MQTT.
//
// Notify never blocks the registry: events are queued on a buffered channel
// and published serially by Run. When the buffer is full the event is
// dropped and counted.
type EventPublisher struct {
	pub     Publisher
	topics  Topics
	qos     byte
	events  chan device.Event
	dropped atomic.Uint64
	logger  Logger
}

// NewEventPublisher creates a publisher writing to pub under topics.
// A non-positive buffer selects the default size.
func NewEventPublisher(pub Publisher, topics Topics, qos byte, buffer int) *EventPublisher {
	if buffer <= 0 {
		buffer = eventBufferSize
	}
	return &EventPublisher{
		pub:    pub,
		topics: topics,
		qos:    qos,
		events: make(chan device.Event, buffer),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for publish failures.
func (p *EventPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Notify queues event for publishing. It implements device.Notifier.
func (p *EventPublisher) Notify(_ context.Context, event device.Event) {
	select {
	case p.events <- event:
	default:
		p.dropped.Add(1)
		p.logger.Warn("event queue full, dropping MQTT event",
			"kind", event.Kind,
			"device_id", event.DeviceID,
		)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (p *EventPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued events until ctx is cancelled, then flushes what
// is still queued before returning.
func (p *EventPublisher) Run(ctx context.Context) {
	for {
		select {
		case event := <-p.events:
			p.publish(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-p.events:
					p.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (p *EventPublisher) publish(event device.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encoding MQTT event", "kind", event.Kind, "error", err)
		return
	}

	topic := p.topics.Event(string(event.Kind))
	if err := p.pub.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("publishing MQTT event",
			"topic", topic,
			"error", err,
		)
	}
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
