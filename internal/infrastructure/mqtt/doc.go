// Package mqtt publishes fleet events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Forwarding registry events (pairing, renames, overrides, unpairs)
//
// # Topics
//
// All topics live under a configurable prefix (default "kiosk"):
//
//	kiosk/system/status          retained online/offline status of kioskd
//	kiosk/events/<kind>          one message per registry event
//
// Event payloads are the JSON encoding of device.Event.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	events := mqtt.NewEventPublisher(client, client.Topics(), client.QoS(), 0)
//	registry.AddNotifier(events)
//	go events.Run(ctx)
//
// Tools that only watch the bus connect with ConnectObserver, which leaves
// the status topic alone.
//
// The broker is optional: with MQTT disabled, kioskd runs without publishing.
package mqtt
