package document

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Weekdays are the preset keys of a schedule document.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// ValidSchedule reports whether v looks like a full schedule document:
// an object carrying a "presets" object and a numeric "version".
func ValidSchedule(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := obj["presets"].(map[string]any); !ok {
		return false
	}
	_, ok = numeric(obj["version"])
	return ok
}

// ScheduleVersion recovers the version from a possibly corrupt schedule.
// Numeric strings are accepted. Anything unusable yields 1.
func ScheduleVersion(v any) int {
	obj, ok := v.(map[string]any)
	if !ok {
		return 1
	}
	f, ok := numeric(obj["version"])
	if !ok {
		if s, isStr := obj["version"].(string); isStr {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return 1
			}
			f, ok = parsed, true
		}
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
		return 1
	}
	return int(f)
}

// DefaultSchedule is the conservative schedule substituted for a corrupt
// one: no presets on any day and playback off.
func DefaultSchedule(version int) map[string]any {
	if version < 1 {
		version = 1
	}
	presets := make(map[string]any, len(Weekdays))
	for _, day := range Weekdays {
		presets[day] = []any{}
	}
	return map[string]any{
		"version":  version,
		"autoPlay": false,
		"presets":  presets,
	}
}

// DefaultSettings is the empty settings document.
func DefaultSettings() map[string]any {
	return map[string]any{}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
