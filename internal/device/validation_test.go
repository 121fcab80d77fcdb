package device

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"trims", "  Lobby Display  ", "Lobby Display", false},
		{"empty", "", "", true},
		{"whitespace", "   ", "", true},
		{"max runes", strings.Repeat("é", maxNameLength), strings.Repeat("é", maxNameLength), false},
		{"too long", strings.Repeat("a", maxNameLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Fatalf("ValidateName() error = %v, want ErrInvalidName", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Override"); err != nil || m != ModeOverride {
		t.Errorf("ParseMode(Override) = %q, %v", m, err)
	}
	if m, err := ParseMode("auto"); err != nil || m != ModeAuto {
		t.Errorf("ParseMode(auto) = %q, %v", m, err)
	}
	if _, err := ParseMode("manual"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(manual) error = %v, want ErrInvalidMode", err)
	}
}

func TestNormalizeScheduleOverride(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"full schedule", `{"version": 4, "presets": {"monday": [{"start": "08:00"}]}}`, false},
		{"missing version", `{"presets": {}}`, true},
		{"string version", `{"version": "4", "presets": {}}`, true},
		{"presets list", `{"version": 4, "presets": []}`, true},
		{"array", `[]`, true},
		{"garbage", `{version`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canon, err := normalizeScheduleOverride(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOverrideShape) {
					t.Fatalf("error = %v, want ErrInvalidOverrideShape", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if strings.Contains(string(canon), " ") {
				t.Errorf("override not canonical: %s", canon)
			}
		})
	}
}

func TestNormalizeSettingsOverride(t *testing.T) {
	if _, err := normalizeSettingsOverride(json.RawMessage(`{"theme": {"accent": "red"}}`)); err != nil {
		t.Errorf("object override error = %v", err)
	}
	for _, raw := range []string{`[]`, `"dark"`, `42`} {
		if _, err := normalizeSettingsOverride(json.RawMessage(raw)); !errors.Is(err, ErrInvalidOverrideShape) {
			t.Errorf("normalizeSettingsOverride(%s) error = %v, want ErrInvalidOverrideShape", raw, err)
		}
	}
}

func TestOverrideSizeLimits(t *testing.T) {
	deep := strings.Repeat(`{"a":`, maxNestingDepth+2) + `1` + strings.Repeat(`}`, maxNestingDepth+2)
	if _, err := normalizeSettingsOverride(json.RawMessage(deep)); !errors.Is(err, ErrInvalidOverrideShape) {
		t.Errorf("deep nesting error = %v, want ErrInvalidOverrideShape", err)
	}

	long := `{"note": "` + strings.Repeat("x", maxStringValueLen+1) + `"}`
	if _, err := normalizeSettingsOverride(json.RawMessage(long)); !errors.Is(err, ErrInvalidOverrideShape) {
		t.Errorf("long string error = %v, want ErrInvalidOverrideShape", err)
	}
}

func TestDeviceDeepCopy(t *testing.T) {
	d := &Device{
		ID:        "dev_000000000001",
		Status:    map[string]any{"network": map[string]any{"ssid": "lobby"}},
		Metrics:   map[string]any{"cpuLoad": 12.5},
		Overrides: Overrides{Settings: json.RawMessage(`{"a":1}`)},
	}

	cpy := d.DeepCopy()
	cpy.Status["network"].(map[string]any)["ssid"] = "changed"
	cpy.Overrides.Settings[1] = 'X'

	if d.Status["network"].(map[string]any)["ssid"] != "lobby" {
		t.Error("DeepCopy shares nested status map")
	}
	if string(d.Overrides.Settings) != `{"a":1}` {
		t.Error("DeepCopy shares override bytes")
	}
	if (*Device)(nil).DeepCopy() != nil {
		t.Error("DeepCopy(nil) should be nil")
	}
}
