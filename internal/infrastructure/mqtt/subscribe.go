package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
)

// EventHandler receives fleet events decoded from the bus.
type EventHandler func(topic string, ev device.Event) error

// SubscribeEvents follows every fleet event under the client's prefix.
// Messages that are not a JSON device.Event are logged and skipped.
func (c *Client) SubscribeEvents(handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	return c.Subscribe(c.topics.AllEvents(), c.QoS(), func(topic string, payload []byte) error {
		ev, err := decodeEvent(payload)
		if err != nil {
			return err
		}
		return handler(topic, ev)
	})
}

func decodeEvent(payload []byte) (device.Event, error) {
	var ev device.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return device.Event{}, fmt.Errorf("decoding fleet event: %w", err)
	}
	if ev.Kind == "" {
		return device.Event{}, errors.New("decoding fleet event: missing kind")
	}
	return ev, nil
}

// Subscribe registers handler for topic, which may hold + or # wildcards.
//
// Handlers run on paho's goroutines under panic recovery. The subscription
// is remembered and restored after a reconnect; a failed subscribe is not.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	var err error
	switch {
	case !token.WaitTimeout(defaultPublishTimeout):
		err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	case token.Error() != nil:
		err = fmt.Errorf("%w: %w", ErrSubscribeFailed, token.Error())
	}
	if err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// HasSubscription reports whether topic (matched exactly) is subscribed.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
