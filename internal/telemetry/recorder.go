package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
)

// DefaultHistorySize is the per-device heartbeat cap when none is configured.
const DefaultHistorySize = 20

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsSink receives sanitized numeric metrics after a heartbeat is stored.
// The InfluxDB writer implements it.
type MetricsSink interface {
	WriteDeviceMetrics(deviceID string, ts time.Time, metrics map[string]float64, offline bool)
}

// HeartbeatEntry is one stored heartbeat. Ago is computed at read time.
type HeartbeatEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    map[string]any `json:"status"`
	Metrics   map[string]any `json:"metrics"`
	Offline   bool           `json:"offline"`
	Ago       int64          `json:"ago"`
}

// Recorder stores heartbeats.
//
// All methods are safe for concurrent use; each Touch is an independent
// single-row transaction.
type Recorder struct {
	db          *sql.DB
	schemas     Schemas
	historySize int
	sink        MetricsSink
	logger      Logger
}

// NewRecorder creates a recorder keeping at most historySize entries per device.
func NewRecorder(db *sql.DB, historySize int) *Recorder {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Recorder{
		db:          db,
		schemas:     DefaultSchemas(),
		historySize: historySize,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// SetMetricsSink registers a sink for numeric metrics. nil disables export.
func (r *Recorder) SetMetricsSink(sink MetricsSink) {
	r.sink = sink
}

// Schemas returns the schemas the recorder sanitizes with.
func (r *Recorder) Schemas() Schemas {
	return r.schemas
}

// Touch records a heartbeat for deviceID at ts.
//
// It returns false with no error and no writes when deviceID is malformed
// or unknown; heartbeats never create devices. A zero ts means now.
func (r *Recorder) Touch(ctx context.Context, deviceID string, ts time.Time, p Payload) (bool, error) {
	id := device.NormalizeID(deviceID)
	if id == "" {
		return false, nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	clean := r.schemas.Clean(p)
	status, metrics := clean.Status, clean.Metrics
	// status.errors mirrors the latest report, so a heartbeat without errors
	// clears the list instead of inheriting it through the merge.
	if _, ok := status["errors"]; !ok {
		status["errors"] = []any{}
	}

	statusJSON, err := json.Marshal(status)
	if err != nil {
		return false, fmt.Errorf("marshalling status: %w", err)
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return false, fmt.Errorf("marshalling metrics: %w", err)
	}
	stamp := database.FormatTime(ts)

	found := false
	err = database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		var merged string
		err := tx.QueryRowContext(ctx, `
			UPDATE devices
			SET last_seen = ?, status = json_patch(status, ?), metrics = ?
			WHERE id = ?
			RETURNING status`,
			stamp, string(statusJSON), string(metricsJSON), id,
		).Scan(&merged)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("updating device: %w", err)
		}
		found = true

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO heartbeats (device_id, ts, status, metrics, offline)
			VALUES (?, ?, ?, ?, ?)`,
			id, stamp, merged, string(metricsJSON), boolToInt(p.Offline),
		); err != nil {
			return fmt.Errorf("inserting heartbeat: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM heartbeats
			WHERE device_id = ? AND id NOT IN (
				SELECT id FROM heartbeats WHERE device_id = ? ORDER BY id DESC LIMIT ?
			)`,
			id, id, r.historySize,
		); err != nil {
			return fmt.Errorf("evicting heartbeats: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !found {
		r.logger.Debug("heartbeat for unknown device ignored", "device_id", id)
		return false, nil
	}

	if r.sink != nil {
		r.sink.WriteDeviceMetrics(id, ts, numericMetrics(metrics), p.Offline)
	}
	return true, nil
}

// History returns a device's heartbeats oldest first, with Ago measured
// against now. Unknown devices have an empty history.
func (r *Recorder) History(ctx context.Context, deviceID string, now time.Time) ([]HeartbeatEntry, error) {
	id := device.NormalizeID(deviceID)
	if id == "" {
		return nil, device.ErrInvalidDevice
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, status, metrics, offline
		FROM heartbeats
		WHERE device_id = ?
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying heartbeats: %w", err)
	}
	defer rows.Close()

	entries := []HeartbeatEntry{}
	for rows.Next() {
		var (
			e               HeartbeatEntry
			ts              string
			status, metrics string
			offline         int
		)
		if err := rows.Scan(&ts, &status, &metrics, &offline); err != nil {
			return nil, fmt.Errorf("scanning heartbeat: %w", err)
		}
		if e.Timestamp, err = database.ParseTime(ts); err != nil {
			return nil, err
		}
		e.Status = decodeObject(status)
		e.Metrics = decodeObject(metrics)
		e.Offline = offline == 1
		if ago := now.Sub(e.Timestamp); ago > 0 {
			e.Ago = int64(ago / time.Second)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating heartbeats: %w", err)
	}
	return entries, nil
}

func numericMetrics(m map[string]any) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

func decodeObject(s string) map[string]any {
	m := map[string]any{}
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
