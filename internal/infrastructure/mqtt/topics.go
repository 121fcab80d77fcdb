package mqtt

import "strings"

// DefaultTopicPrefix roots every topic when none is configured.
const DefaultTopicPrefix = "kiosk"

// Topics builds the fleet's MQTT topic names under a configurable prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("site-a/kiosk")
//	topics.Event("device.paired")
//	// Returns: "site-a/kiosk/events/device.paired"
type Topics struct {
	Prefix string
}

// NewTopics returns builders rooted at prefix, ignoring surrounding
// slashes. An empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Event returns the topic a registry event of kind is published on.
//
// Example: kiosk/events/device.paired
func (t Topics) Event(kind string) string {
	return t.root() + "/events/" + kind
}

// AllEvents returns the wildcard matching every event topic.
//
// Example: kiosk/events/#
func (t Topics) AllEvents() string {
	return t.root() + "/events/#"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: kiosk/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}
