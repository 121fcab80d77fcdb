package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/kiosk-fleet-core/internal/document"
)

// Validation constants.
const (
	maxNameLength = 100

	// Size limits for override payloads to bound memory and row size.
	maxOverrideBytes  = 256 * 1024
	maxObjectKeys     = 200
	maxArrayItems     = 500
	maxStringValueLen = 4096
	maxNestingDepth   = 10
)

// ValidateName trims a device name and checks its length in runes.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return name, nil
}

// ParseMode validates a mode string. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeOverride:
		return ModeOverride, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// isNull reports whether raw is the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// normalizeScheduleOverride checks a schedule override and returns it in
// canonical form.
func normalizeScheduleOverride(raw json.RawMessage) (json.RawMessage, error) {
	v, canon, err := decodeOverride(raw, "schedule")
	if err != nil {
		return nil, err
	}
	if !document.ValidSchedule(v) {
		return nil, fmt.Errorf("%w: schedule needs a presets object and a numeric version", ErrInvalidOverrideShape)
	}
	return canon, nil
}

// normalizeSettingsOverride checks a partial settings override and returns
// it in canonical form.
func normalizeSettingsOverride(raw json.RawMessage) (json.RawMessage, error) {
	v, canon, err := decodeOverride(raw, "settings")
	if err != nil {
		return nil, err
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: settings must be an object", ErrInvalidOverrideShape)
	}
	return canon, nil
}

func decodeOverride(raw json.RawMessage, field string) (any, json.RawMessage, error) {
	if len(raw) > maxOverrideBytes {
		return nil, nil, fmt.Errorf("%w: %s override exceeds %d bytes", ErrInvalidOverrideShape, field, maxOverrideBytes)
	}
	canon, err := document.Canonical(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverrideShape, field, err)
	}
	var v any
	if err := json.Unmarshal(canon, &v); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverrideShape, field, err)
	}
	if err := validateValueSize(v, field, 0); err != nil {
		return nil, nil, err
	}
	return v, canon, nil
}

// validateValueSize recursively bounds nesting, key counts and string sizes.
func validateValueSize(v any, field string, depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("%w: %s exceeds maximum nesting depth", ErrInvalidOverrideShape, field)
	}

	switch val := v.(type) {
	case string:
		if len(val) > maxStringValueLen {
			return fmt.Errorf("%w: %s string value too long", ErrInvalidOverrideShape, field)
		}
	case map[string]any:
		if len(val) > maxObjectKeys {
			return fmt.Errorf("%w: %s object too large", ErrInvalidOverrideShape, field)
		}
		for k, elem := range val {
			if len(k) > maxStringValueLen {
				return fmt.Errorf("%w: %s key too long", ErrInvalidOverrideShape, field)
			}
			if err := validateValueSize(elem, field, depth+1); err != nil {
				return err
			}
		}
	case []any:
		if len(val) > maxArrayItems {
			return fmt.Errorf("%w: %s array too large", ErrInvalidOverrideShape, field)
		}
		for _, elem := range val {
			if err := validateValueSize(elem, field, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
