package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/logging"
)

const testSecret = "test-secret-for-development-only-0123456789"

func writeTestConfig(t *testing.T, dbPath string, port int) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	content := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: ` + strconv.Itoa(port) + `

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: warn
  format: text
  output: stderr

security:
  jwt:
    secret: "` + testSecret + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", writeTestConfig(t, "", 8080))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kiosk.db")
	port := freePort(t)
	t.Setenv("KIOSK_CONFIG", writeTestConfig(t, dbPath, port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	// Wait for the listener before shutting down.
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never started listening: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("KIOSK_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestHealthCheck_OptionalClientsDisabled(t *testing.T) {
	db := dbtest.Open(t)

	if err := healthCheck(context.Background(), db, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}

	db.Close() //nolint:errcheck // forcing the failure path
	if err := healthCheck(context.Background(), db, nil, nil); err == nil {
		t.Error("healthCheck() should fail on a closed database")
	}
}

type capturePresence struct {
	mu     sync.Mutex
	counts []map[string]int
}

func (c *capturePresence) WriteFleetPresence(_ time.Time, counts map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = append(c.counts, counts)
}

func (c *capturePresence) first() (map[string]int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.counts) == 0 {
		return nil, false
	}
	return c.counts[0], true
}

func TestExportFleetPresence(t *testing.T) {
	db := dbtest.OpenSQL(t)
	registry := device.NewRegistry(device.NewSQLiteRepository(db), device.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := registry.BeginPairing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Claim(ctx, p.Code, "Lobby"); err != nil {
		t.Fatal(err)
	}

	w := &capturePresence{}
	done := make(chan struct{})
	go func() {
		exportFleetPresence(ctx, registry, w, 10*time.Millisecond, logging.Discard())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if counts, ok := w.first(); ok {
			if counts["never-seen"] != 1 || counts["online"] != 0 {
				t.Errorf("counts = %v", counts)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("no presence export")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
