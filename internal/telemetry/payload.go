package telemetry

import "strings"

// Payload is the canonical shape of one heartbeat, before sanitization.
type Payload struct {
	Status  map[string]any
	Metrics map[string]any
	Errors  []any
	Offline bool
}

// nestedKeys are the envelope keys clients wrap telemetry in.
var nestedKeys = []string{"telemetry", "payload"}

// ExtractPayload normalizes a loosely shaped heartbeat body.
//
// Telemetry may sit at the top level, under "telemetry" or under
// "payload"; nested values win over top-level ones. Metrics may be a
// "metrics" object or flat metric keys; status likewise. Errors may be a
// top-level "errors" list or live inside status. Offline is set by
// "offline": true or "online": false.
func ExtractPayload(raw map[string]any) Payload {
	return extractWith(DefaultSchemas(), raw)
}

func extractWith(schemas Schemas, raw map[string]any) Payload {
	containers := []map[string]any{raw}
	for _, key := range nestedKeys {
		if nested, ok := raw[key].(map[string]any); ok {
			containers = append(containers, nested)
		}
	}

	p := Payload{
		Status:  map[string]any{},
		Metrics: map[string]any{},
	}
	for _, c := range containers {
		collect(p.Metrics, c, "metrics", schemas.Metrics)
		collect(p.Status, c, "status", schemas.Status)

		if errs, ok := c["errors"]; ok && errs != nil {
			p.Errors = asList(errs)
		}
		if offline, ok := flag(c["offline"]); ok {
			p.Offline = offline
		} else if online, ok := flag(c["online"]); ok {
			p.Offline = !online
		}
	}

	if p.Errors == nil {
		if errs, ok := p.Status["errors"]; ok && errs != nil {
			p.Errors = asList(errs)
		}
	}
	delete(p.Status, "errors")
	return p
}

// collect copies the object under key plus any flat schema keys of c into dst.
func collect(dst map[string]any, c map[string]any, key string, schema Schema) {
	for _, k := range schema.Keys() {
		if v, ok := c[k]; ok {
			dst[k] = v
		}
	}
	if obj, ok := c[key].(map[string]any); ok {
		for k, v := range obj {
			dst[k] = v
		}
	}
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		return []any{t}
	default:
		return []any{}
	}
}

func flag(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	case float64:
		return t != 0, true
	}
	return false, false
}
