package telemetry

import (
	"reflect"
	"testing"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Payload
	}{
		{
			name: "canonical shape",
			raw: map[string]any{
				"device":  "dev_1a2b3c4d5e6f",
				"metrics": map[string]any{"cpuLoad": 10.0},
				"status":  map[string]any{"firmware": "1.0"},
				"errors":  []any{"boom"},
				"offline": true,
			},
			want: Payload{
				Status:  map[string]any{"firmware": "1.0"},
				Metrics: map[string]any{"cpuLoad": 10.0},
				Errors:  []any{"boom"},
				Offline: true,
			},
		},
		{
			name: "nested under telemetry",
			raw: map[string]any{
				"device": "dev_1a2b3c4d5e6f",
				"telemetry": map[string]any{
					"metrics": map[string]any{"cpu": "55.4"},
					"online":  false,
				},
			},
			want: Payload{
				Status:  map[string]any{},
				Metrics: map[string]any{"cpu": "55.4"},
				Offline: true,
			},
		},
		{
			name: "flat keys at top level",
			raw: map[string]any{
				"device":   "dev_1a2b3c4d5e6f",
				"cpu":      12.0,
				"temp":     40.0,
				"firmware": "2.0",
				"network":  map[string]any{"rssi": -50.0},
				"online":   true,
			},
			want: Payload{
				Status:  map[string]any{"firmware": "2.0", "network": map[string]any{"rssi": -50.0}},
				Metrics: map[string]any{"cpu": 12.0, "temp": 40.0},
			},
		},
		{
			name: "nested payload wins over top level",
			raw: map[string]any{
				"metrics": map[string]any{"cpuLoad": 1.0},
				"payload": map[string]any{"metrics": map[string]any{"cpuLoad": 2.0}},
			},
			want: Payload{
				Status:  map[string]any{},
				Metrics: map[string]any{"cpuLoad": 2.0},
			},
		},
		{
			name: "errors inside status",
			raw: map[string]any{
				"status": map[string]any{"errors": []any{"x"}, "notes": "hi"},
			},
			want: Payload{
				Status:  map[string]any{"notes": "hi"},
				Metrics: map[string]any{},
				Errors:  []any{"x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPayload(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractPayload() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
