package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the kiosk fleet core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Live     LiveConfig     `yaml:"live"`
	Fleet    FleetConfig    `yaml:"fleet"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// Write applies to ordinary request/response handlers only; live channel
// connections clear their write deadline because they are held open
// indefinitely.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LiveConfig contains push channel settings.
type LiveConfig struct {
	// PollIntervalMS is how often each connection re-fingerprints its scope.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// PingIntervalS is the idle time after which a ping event is sent.
	PingIntervalS int `yaml:"ping_interval_s"`

	// WriteTimeoutS bounds a single event write to a slow client.
	WriteTimeoutS int `yaml:"write_timeout_s"`

	// MaxMessageSize limits inbound WebSocket frames (clients only send close/pong).
	MaxMessageSize int `yaml:"max_message_size"`
}

// FleetConfig contains device lifecycle settings.
type FleetConfig struct {
	PairingTTLMinutes         int `yaml:"pairing_ttl_minutes"`
	OnlineThresholdSeconds    int `yaml:"online_threshold_seconds"`
	HistorySize               int `yaml:"history_size"`
	ClaimedCodeRetentionHours int `yaml:"claimed_code_retention_hours"`
	JanitorIntervalSeconds    int `yaml:"janitor_interval_seconds"`
}

// MQTTConfig contains MQTT broker connection settings for fleet event publishing.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for heartbeat metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KIOSK_SECTION_KEY
// For example: KIOSK_DATABASE_PATH, KIOSK_API_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/kiosk.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  120,
			},
		},
		Live: LiveConfig{
			PollIntervalMS: 500,
			PingIntervalS:  25,
			WriteTimeoutS:  10,
			MaxMessageSize: 4096,
		},
		Fleet: FleetConfig{
			PairingTTLMinutes:         15,
			OnlineThresholdSeconds:    300,
			HistorySize:               20,
			ClaimedCodeRetentionHours: 24,
			JanitorIntervalSeconds:    60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "kiosk-fleet-core",
			},
			QoS:         1,
			TopicPrefix: "kiosk",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KIOSK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIOSK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("KIOSK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("KIOSK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("KIOSK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KIOSK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KIOSK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("KIOSK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("KIOSK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Always override in production.
	if v := os.Getenv("KIOSK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Live.PollIntervalMS < 50 {
		errs = append(errs, "live.poll_interval_ms must be at least 50")
	}
	if c.Live.PingIntervalS < 1 {
		errs = append(errs, "live.ping_interval_s must be at least 1")
	}

	if c.Fleet.PairingTTLMinutes < 1 {
		errs = append(errs, "fleet.pairing_ttl_minutes must be at least 1")
	}
	if c.Fleet.OnlineThresholdSeconds < 1 {
		errs = append(errs, "fleet.online_threshold_seconds must be at least 1")
	}
	if c.Fleet.HistorySize < 1 {
		errs = append(errs, "fleet.history_size must be at least 1")
	}
	if c.Fleet.JanitorIntervalSeconds < 1 {
		errs = append(errs, "fleet.janitor_interval_seconds must be at least 1")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// Admin routes mutate the whole fleet; a forgeable token means anyone can
	// unpair every display.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set KIOSK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// PollInterval returns the live channel poll interval.
func (l LiveConfig) PollInterval() time.Duration {
	return time.Duration(l.PollIntervalMS) * time.Millisecond
}

// PingInterval returns the live channel keep-alive interval.
func (l LiveConfig) PingInterval() time.Duration {
	return time.Duration(l.PingIntervalS) * time.Second
}

// WriteTimeout returns the per-event write deadline.
func (l LiveConfig) WriteTimeout() time.Duration {
	return time.Duration(l.WriteTimeoutS) * time.Second
}

// PairingTTL returns how long a pairing code stays claimable.
func (f FleetConfig) PairingTTL() time.Duration {
	return time.Duration(f.PairingTTLMinutes) * time.Minute
}

// OnlineThreshold returns the heartbeat age below which a device counts as online.
func (f FleetConfig) OnlineThreshold() time.Duration {
	return time.Duration(f.OnlineThresholdSeconds) * time.Second
}

// ClaimedCodeRetention returns how long resolved pairing codes stay pollable.
func (f FleetConfig) ClaimedCodeRetention() time.Duration {
	return time.Duration(f.ClaimedCodeRetentionHours) * time.Hour
}

// JanitorInterval returns how often stale pairing codes are purged.
func (f FleetConfig) JanitorInterval() time.Duration {
	return time.Duration(f.JanitorIntervalSeconds) * time.Second
}

// TokenTTL returns the operator access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Minute
}
