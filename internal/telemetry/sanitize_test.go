package telemetry

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestSanitize_Metrics(t *testing.T) {
	schema := DefaultMetricsSchema()

	tests := []struct {
		name string
		raw  map[string]any
		want map[string]any
	}{
		{
			name: "numeric string becomes number",
			raw:  map[string]any{"cpuLoad": "34.5"},
			want: map[string]any{"cpuLoad": 34.5},
		},
		{
			name: "aliases map to canonical names",
			raw:  map[string]any{"cpu": 12.34, "mem": 50.0, "temp": 41.26, "uptimeSeconds": 3600.7},
			want: map[string]any{"cpuLoad": 12.3, "memoryUsage": 50.0, "temperature": 41.3, "uptime": 3601.0},
		},
		{
			name: "canonical name beats alias",
			raw:  map[string]any{"cpu": 10.0, "cpuLoad": 20.0},
			want: map[string]any{"cpuLoad": 20.0},
		},
		{
			name: "clamped to range",
			raw:  map[string]any{"cpuLoad": 140.0, "memoryUsage": -3.0, "temperature": 999.0, "uptime": -5.0},
			want: map[string]any{"cpuLoad": 100.0, "memoryUsage": 0.0, "temperature": 150.0, "uptime": 0.0},
		},
		{
			name: "malformed number coerces to zero",
			raw:  map[string]any{"cpuLoad": "fast", "memoryUsage": true},
			want: map[string]any{"cpuLoad": 0.0, "memoryUsage": 0.0},
		},
		{
			name: "unknown fields dropped",
			raw:  map[string]any{"gpu": 12.0, "cpu_load": json.Number("7.25")},
			want: map[string]any{"cpuLoad": 7.3},
		},
		{
			name: "uptime has no upper bound",
			raw:  map[string]any{"uptime": 9.9e6},
			want: map[string]any{"uptime": 9.9e6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(schema, tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sanitize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitize_Status(t *testing.T) {
	schema := DefaultStatusSchema()

	got := Sanitize(schema, map[string]any{
		"firmwareVersion": "  2.4.1 ",
		"notes":           "   ",
		"network": map[string]any{
			"quality":        140.0,
			"signalStrength": -44.2,
			"ssid":           " Lobby-WiFi ",
			"mac":            "aa:bb",
		},
		"colour": "blue",
	})

	want := map[string]any{
		"firmware": "2.4.1",
		"network": map[string]any{
			"quality": 100.0,
			"rssi":    -44.0,
			"ssid":    "Lobby-WiFi",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %v, want %v", got, want)
	}
}

func TestSanitize_EmptyObjectDropped(t *testing.T) {
	got := Sanitize(DefaultStatusSchema(), map[string]any{
		"network": map[string]any{"ssid": "  "},
	})
	if _, ok := got["network"]; ok {
		t.Errorf("empty network object kept: %v", got)
	}
}

func TestSanitize_NegativeZero(t *testing.T) {
	got := Sanitize(DefaultStatusSchema(), map[string]any{
		"network": map[string]any{"rssi": -0.2},
	})
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"network":{"rssi":0}}` {
		t.Errorf("marshalled = %s, want rssi 0", b)
	}
}

func TestSanitize_StringTruncation(t *testing.T) {
	got := Sanitize(DefaultStatusSchema(), map[string]any{
		"firmware": strings.Repeat("ü", 100),
	})
	if n := len([]rune(got["firmware"].(string))); n != 64 {
		t.Errorf("firmware length = %d runes, want 64", n)
	}
}

func TestSanitizeList(t *testing.T) {
	f := errorsField(DefaultStatusSchema())

	var many []any
	for i := 0; i < 15; i++ {
		many = append(many, strings.Repeat("e", i+1))
	}
	got, ok := sanitizeList(f, many)
	if !ok {
		t.Fatal("sanitizeList() dropped list")
	}
	list := got.([]any)
	if len(list) != maxErrors {
		t.Fatalf("len = %d, want %d", len(list), maxErrors)
	}
	if list[len(list)-1] != strings.Repeat("e", 15) {
		t.Errorf("newest item not kept last: %v", list[len(list)-1])
	}

	got, _ = sanitizeList(f, []any{" disk full ", "", map[string]any{"message": "gpu hang"}, 42.0})
	want := []any{"disk full", "gpu hang", "42"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sanitizeList() = %v, want %v", got, want)
	}

	got, _ = sanitizeList(f, "single failure")
	if !reflect.DeepEqual(got, []any{"single failure"}) {
		t.Errorf("sanitizeList(string) = %v", got)
	}
}

func TestSchemasClean(t *testing.T) {
	p := ExtractPayload(map[string]any{
		"cpu":     "41.26",
		"offline": true,
		"errors":  []any{"  disk full  ", ""},
		"status":  map[string]any{"firmware": "1.4.2", "bogus": 1},
	})

	got := DefaultSchemas().Clean(p)

	if got.Metrics["cpuLoad"] != 41.3 {
		t.Errorf("cpuLoad = %v, want 41.3", got.Metrics["cpuLoad"])
	}
	if got.Status["firmware"] != "1.4.2" {
		t.Errorf("firmware = %v", got.Status["firmware"])
	}
	if _, ok := got.Status["bogus"]; ok {
		t.Error("unknown status key kept")
	}
	if !got.Offline {
		t.Error("Offline = false, want true")
	}
	errs, ok := got.Status["errors"].([]any)
	if !ok || len(errs) != 1 || errs[0] != "disk full" {
		t.Errorf("errors = %#v", got.Status["errors"])
	}
}
