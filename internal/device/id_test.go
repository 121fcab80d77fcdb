package device

import (
	"regexp"
	"strings"
	"testing"
)

var canonicalID = regexp.MustCompile(`^dev_[0-9a-f]{12}$`)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"dev_1a2b3c4d5e6f", "dev_1a2b3c4d5e6f"},
		{"DEV_1A2B3C4D5E6F", "dev_1a2b3c4d5e6f"},
		{"  dev_1a2B3c4D5e6f\n", "dev_1a2b3c4d5e6f"},
		{"dev_1a2b3c4d5e6", ""},
		{"dev_1a2b3c4d5e6f0", ""},
		{"dev_1a2b3c4d5e6g", ""},
		{"device_1a2b3c4d5e6f", ""},
		{"1a2b3c4d5e6f", ""},
		{"dev-1a2b3c4d5e6f", ""},
		{"", ""},
		{"dev_1a2b 3c4d5e6f", ""},
		{"dev_１a2b3c4d5e6f", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeID(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got != "" && !canonicalID.MatchString(got) {
				t.Errorf("NormalizeID(%q) = %q is not canonical", tt.input, got)
			}
		})
	}
}

func TestNormalizeID_OutputAlwaysEmptyOrCanonical(t *testing.T) {
	inputs := []string{
		"dev_", "DEV_", "dev_" + strings.Repeat("f", 12), "dev_" + strings.Repeat("F", 12),
		"\x00dev_000000000000", "dev_000000000000\x00", "☃", "dev_00000000000☃",
	}
	for i := 0; i < 50; i++ {
		inputs = append(inputs, GenerateID(), strings.ToUpper(GenerateID()))
	}

	for _, in := range inputs {
		got := NormalizeID(in)
		if got != "" && !canonicalID.MatchString(got) {
			t.Errorf("NormalizeID(%q) = %q", in, got)
		}
		if got != "" && NormalizeID(strings.ToUpper(in)) != got {
			t.Errorf("mixed case %q did not normalise to %q", in, got)
		}
	}
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if !canonicalID.MatchString(id) {
			t.Fatalf("GenerateID() = %q, not canonical", id)
		}
		if seen[id] {
			t.Fatalf("GenerateID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		if NormalizeCode(code) != code {
			t.Fatalf("GenerateCode() = %q, want six digits", code)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{
		"482193":   "482193",
		" 000123 ": "000123",
		"48219":    "",
		"4821934":  "",
		"48a193":   "",
		"":         "",
	}
	for in, want := range tests {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultName(t *testing.T) {
	if got := defaultName("dev_1a2b3c4d5e6f"); got != "Display 5e6f" {
		t.Errorf("defaultName() = %q, want %q", got, "Display 5e6f")
	}
}
