package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when a generated device ID is already taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a device ID is malformed.
	ErrInvalidDevice = errors.New("device: invalid id")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidMode is returned when a mode is neither auto nor override.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrInvalidOverrideShape is returned when an override payload does not
	// look like the document it overrides.
	ErrInvalidOverrideShape = errors.New("device: invalid override shape")

	// ErrCodeInvalid is returned for an unknown or malformed pairing code.
	ErrCodeInvalid = errors.New("device: pairing code invalid")

	// ErrCodeExpired is returned when a pairing code is past its TTL.
	ErrCodeExpired = errors.New("device: pairing code expired")

	// ErrCodeAlreadyClaimed is returned when a pairing code was already used.
	ErrCodeAlreadyClaimed = errors.New("device: pairing code already claimed")

	// ErrCodeCollision is returned by the repository when a generated code
	// is still in use.
	ErrCodeCollision = errors.New("device: pairing code in use")

	// ErrPairingUnavailable is returned when no pairing session could be
	// allocated.
	ErrPairingUnavailable = errors.New("device: pairing unavailable")
)
