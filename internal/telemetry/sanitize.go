package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Sanitize applies schema to raw and returns a new map holding only
// schema fields, under their canonical names.
//
// Numbers are coerced from strings (unparseable ones become 0), clamped
// and rounded. Strings are trimmed and truncated; empty strings are
// dropped. Objects recurse and are dropped when nothing survives. Unknown
// keys are dropped. Sanitize never fails.
func Sanitize(schema Schema, raw map[string]any) map[string]any {
	out := make(map[string]any)
	for _, f := range schema.Fields {
		v, ok := pick(raw, f)
		if !ok {
			continue
		}
		if clean, keep := sanitizeValue(f, v); keep {
			out[f.Name] = clean
		}
	}
	return out
}

// Clean is a sanitized heartbeat, ready to store.
type Clean struct {
	Status  map[string]any `json:"status"`
	Metrics map[string]any `json:"metrics"`
	Offline bool           `json:"offline"`
}

// Clean sanitizes p. Top-level errors replace any errors list in status.
func (s Schemas) Clean(p Payload) Clean {
	status := Sanitize(s.Status, p.Status)
	if p.Errors != nil {
		if errs, ok := sanitizeList(errorsField(s.Status), p.Errors); ok {
			status["errors"] = errs
		}
	}
	return Clean{
		Status:  status,
		Metrics: Sanitize(s.Metrics, p.Metrics),
		Offline: p.Offline,
	}
}

func errorsField(s Schema) Field {
	if f, ok := s.Lookup("errors"); ok {
		return f
	}
	return Field{Name: "errors", Kind: KindList, MaxLen: maxErrorLength, MaxItems: maxErrors}
}

// pick returns the value for f from raw, preferring the canonical name.
func pick(raw map[string]any, f Field) (any, bool) {
	if v, ok := raw[f.Name]; ok && v != nil {
		return v, true
	}
	for _, a := range f.Aliases {
		if v, ok := raw[a]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func sanitizeValue(f Field, v any) (any, bool) {
	switch f.Kind {
	case KindNumber:
		return sanitizeNumber(f, v), true
	case KindString:
		s, ok := sanitizeString(v, f.MaxLen)
		return s, ok
	case KindObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		clean := Sanitize(Schema{Fields: f.Fields}, obj)
		return clean, len(clean) > 0
	case KindList:
		return sanitizeList(f, v)
	default:
		return nil, false
	}
}

func sanitizeNumber(f Field, v any) float64 {
	n := toNumber(v)
	if f.Clamp {
		if n < f.Min {
			n = f.Min
		}
		if !f.NoMax && n > f.Max {
			n = f.Max
		}
	}
	n = round(n, f.Decimals)
	if n == 0 {
		// Avoid emitting -0.
		n = 0
	}
	return n
}

// toNumber coerces v to a finite float. Anything unparseable is 0.
func toNumber(v any) float64 {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		n = f
	default:
		return 0
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

func round(n float64, decimals int) float64 {
	if decimals < 0 {
		return n
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(n*p) / p
}

func sanitizeString(v any, maxLen int) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s, true
}

// sanitizeList keeps the newest MaxItems non-empty strings. A single
// string is treated as a one-item list.
func sanitizeList(f Field, v any) (any, bool) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case string:
		items = []any{t}
	default:
		return nil, false
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			// {"message": "..."} is a common client shape.
			item = obj["message"]
		}
		if s, ok := sanitizeString(item, f.MaxLen); ok {
			out = append(out, s)
		}
	}
	if f.MaxItems > 0 && len(out) > f.MaxItems {
		out = out[len(out)-f.MaxItems:]
	}
	return out, true
}
