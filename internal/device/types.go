package device

import (
	"encoding/json"
	"time"
)

// Mode selects how a device's effective configuration is built.
type Mode string

// Device modes.
const (
	// ModeAuto renders the global documents; stored overrides are inert.
	ModeAuto Mode = "auto"

	// ModeOverride applies the device's stored overrides on top of the
	// global documents.
	ModeOverride Mode = "override"
)

// Device is a paired display.
// This matches the devices table in migrations/20260301_090000_initial_schema.up.sql.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Mode Mode   `json:"mode"`

	PairedAt *time.Time `json:"pairedAt"`

	// LastSeen is the last heartbeat in epoch seconds, 0 when never seen.
	LastSeen   int64      `json:"lastSeen"`
	LastSeenAt *time.Time `json:"lastSeenAt"`

	// Presence is derived on read by ListDevices and GetDevice.
	Presence PresenceState `json:"presence,omitempty"`

	Status  map[string]any `json:"status"`
	Metrics map[string]any `json:"metrics"`

	Overrides Overrides `json:"overrides"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Overrides are the per-device documents applied in override mode.
// Both are stored in canonical JSON form; nil means not set.
type Overrides struct {
	// Schedule replaces the global schedule wholesale.
	Schedule json.RawMessage `json:"schedule,omitempty"`

	// Settings is deep-merged over the global settings.
	Settings json.RawMessage `json:"settings,omitempty"`
}

// IsEmpty reports whether neither override is set.
func (o Overrides) IsEmpty() bool {
	return len(o.Schedule) == 0 && len(o.Settings) == 0
}

// OverridesPatch is the input to SetOverrides. A nil field leaves the
// stored override untouched; a JSON null clears it.
type OverridesPatch struct {
	Schedule json.RawMessage `json:"schedule,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// PairingCode is a short-lived code a display shows while waiting to be claimed.
type PairingCode struct {
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	DeviceID  *string    `json:"deviceId,omitempty"`
	ClaimedAt *time.Time `json:"claimedAt,omitempty"`
}

// Pending reports whether the code has not been claimed.
func (p *PairingCode) Pending() bool {
	return p.DeviceID == nil
}

// Expired reports whether the code can no longer be claimed at now.
// A resolved code never counts as expired.
func (p *PairingCode) Expired(now time.Time) bool {
	return p.Pending() && !now.Before(p.ExpiresAt)
}

// PairingStatus is what a polling display sees.
type PairingStatus struct {
	Code      string    `json:"code"`
	Paired    bool      `json:"paired"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Expired   bool      `json:"expired"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DeepCopy creates an independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Status = deepCopyMap(d.Status)
	cpy.Metrics = deepCopyMap(d.Metrics)
	cpy.Overrides.Schedule = cloneRaw(d.Overrides.Schedule)
	cpy.Overrides.Settings = cloneRaw(d.Overrides.Settings)

	// Pointer fields (*time.Time) don't need deep copy: time.Time is immutable.
	return &cpy
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// EventKind names a registry mutation.
type EventKind string

// Registry event kinds.
const (
	EventPairingBegun     EventKind = "pairing.begun"
	EventDevicePaired     EventKind = "device.paired"
	EventDeviceRenamed    EventKind = "device.renamed"
	EventModeChanged      EventKind = "device.mode_changed"
	EventOverridesSet     EventKind = "device.overrides_set"
	EventOverridesCleared EventKind = "device.overrides_cleared"
	EventDeviceUnpaired   EventKind = "device.unpaired"
)

// Event describes one registry mutation.
type Event struct {
	Kind     EventKind `json:"kind"`
	DeviceID string    `json:"deviceId,omitempty"`
	Code     string    `json:"code,omitempty"`
	Name     string    `json:"name,omitempty"`
	Mode     Mode      `json:"mode,omitempty"`
	Time     time.Time `json:"time"`
}
