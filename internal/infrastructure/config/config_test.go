package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 9090
live:
  poll_interval_ms: 250
fleet:
  history_size: 5
security:
  jwt:
    secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Live.PollInterval() != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 250ms", cfg.Live.PollInterval())
	}
	if cfg.Fleet.HistorySize != 5 {
		t.Errorf("Fleet.HistorySize = %d, want 5", cfg.Fleet.HistorySize)
	}

	// Untouched sections keep their defaults.
	if cfg.Live.PingInterval() != 25*time.Second {
		t.Errorf("PingInterval() = %v, want 25s", cfg.Live.PingInterval())
	}
	if cfg.Fleet.PairingTTL() != 15*time.Minute {
		t.Errorf("PairingTTL() = %v, want 15m", cfg.Fleet.PairingTTL())
	}
	if cfg.Fleet.OnlineThreshold() != 5*time.Minute {
		t.Errorf("OnlineThreshold() = %v, want 5m", cfg.Fleet.OnlineThreshold())
	}
	if cfg.Security.JWT.TokenTTL() != time.Hour {
		t.Errorf("TokenTTL() = %v, want 1h", cfg.Security.JWT.TokenTTL())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "/tmp/from-file.db"
`)

	t.Setenv("KIOSK_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("KIOSK_API_PORT", "7070")
	t.Setenv("KIOSK_JWT_SECRET", testSecret)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != testSecret {
		t.Error("JWT secret not taken from environment")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with secret are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *Config) { c.Live.PollIntervalMS = 1 },
			wantErr: "live.poll_interval_ms",
		},
		{
			name:    "zero history",
			mutate:  func(c *Config) { c.Fleet.HistorySize = 0 },
			wantErr: "fleet.history_size",
		},
		{
			name: "influx enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: "influxdb.url",
		},
		{
			name: "mqtt qos out of range",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Security.JWT.Secret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	t.Setenv("KIOSK_JWT_SECRET", testSecret)

	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	defaults := Default()
	if cfg.Fleet != defaults.Fleet {
		t.Errorf("Fleet = %+v, want defaults %+v", cfg.Fleet, defaults.Fleet)
	}
	if cfg.Live != defaults.Live {
		t.Errorf("Live = %+v, want defaults %+v", cfg.Live, defaults.Live)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional integrations should ship disabled")
	}
	if cfg.MQTT.TopicPrefix != "kiosk" {
		t.Errorf("MQTT.TopicPrefix = %q", cfg.MQTT.TopicPrefix)
	}
}
