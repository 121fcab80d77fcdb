package live

import (
	"errors"
	"strings"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
)

// ErrConflictingScope is returned when a request names both a device and
// a pairing code.
var ErrConflictingScope = errors.New("live: device and pair are mutually exclusive")

// ScopeKind is what a connection watches.
type ScopeKind string

// Scope kinds.
const (
	ScopeGlobal  ScopeKind = "global"
	ScopeDevice  ScopeKind = "device"
	ScopePairing ScopeKind = "pairing"
)

// Scope is a classified watch request.
type Scope struct {
	Kind     ScopeKind
	DeviceID string
	Code     string
}

// ParseScope classifies the device and pair request parameters.
//
// Returns ErrConflictingScope if both are set, device.ErrInvalidDevice for
// a malformed device ID and device.ErrCodeInvalid for a malformed code.
func ParseScope(deviceParam, pairParam string) (Scope, error) {
	deviceParam = strings.TrimSpace(deviceParam)
	pairParam = strings.TrimSpace(pairParam)

	switch {
	case deviceParam != "" && pairParam != "":
		return Scope{}, ErrConflictingScope
	case deviceParam != "":
		id := device.NormalizeID(deviceParam)
		if id == "" {
			return Scope{}, device.ErrInvalidDevice
		}
		return Scope{Kind: ScopeDevice, DeviceID: id}, nil
	case pairParam != "":
		code := device.NormalizeCode(pairParam)
		if code == "" {
			return Scope{}, device.ErrCodeInvalid
		}
		return Scope{Kind: ScopePairing, Code: code}, nil
	default:
		return Scope{Kind: ScopeGlobal}, nil
	}
}

// String returns a log-friendly form such as "device:dev_0123456789ab".
func (s Scope) String() string {
	switch s.Kind {
	case ScopeDevice:
		return string(s.Kind) + ":" + s.DeviceID
	case ScopePairing:
		return string(s.Kind) + ":" + s.Code
	default:
		return string(s.Kind)
	}
}

// readyPayload is the body of the ready event.
type readyPayload struct {
	Scope    ScopeKind `json:"scope"`
	DeviceID string    `json:"deviceId,omitempty"`
	Code     string    `json:"code,omitempty"`
}

func (s Scope) ready() readyPayload {
	return readyPayload{Scope: s.Kind, DeviceID: s.DeviceID, Code: s.Code}
}
