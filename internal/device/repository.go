package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
)

// Repository defines the interface for device and pairing persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Modify loads a device, applies fn and writes the configuration
	// fields back (name, mode, overrides, updated_at) in one transaction,
	// so concurrent edits to the same device never overwrite each other.
	// Telemetry columns are left alone. An error from fn aborts the write.
	// Returns ErrDeviceNotFound if the device does not exist.
	Modify(ctx context.Context, id string, fn func(d *Device) error) (*Device, error)

	// Delete removes a device, its heartbeat history and any pairing
	// codes that resolved to it.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// CreatePairing stores a new pending code. An expired pending row with
	// the same code is replaced; any other existing row yields ErrCodeCollision.
	CreatePairing(ctx context.Context, p *PairingCode, now time.Time) error

	// GetPairing retrieves a pairing code.
	// Returns ErrCodeInvalid if the code does not exist.
	GetPairing(ctx context.Context, code string) (*PairingCode, error)

	// ListPendingPairings returns unclaimed codes that expire after now.
	ListPendingPairings(ctx context.Context, now time.Time) ([]PairingCode, error)

	// ClaimPairing inserts d and resolves code to it in one transaction.
	// Returns ErrCodeInvalid, ErrCodeExpired, ErrCodeAlreadyClaimed or
	// ErrDeviceExists.
	ClaimPairing(ctx context.Context, code string, d *Device, now time.Time) error

	// PurgePairings deletes pending codes that expired before expiredBefore
	// and resolved codes claimed before claimedBefore.
	PurgePairings(ctx context.Context, expiredBefore, claimedBefore time.Time) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, mode, paired_at, last_seen, status, metrics,
	override_schedule, override_settings, created_at, updated_at`

// GetByID retrieves a device by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Modify runs fn on the stored device and writes it back in one transaction.
func (r *SQLiteRepository) Modify(ctx context.Context, id string, fn func(d *Device) error) (*Device, error) {
	var d *Device
	err := database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
		loaded, err := scanDevice(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDeviceNotFound
			}
			return fmt.Errorf("querying device by id: %w", err)
		}
		if err := fn(loaded); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE devices
			SET name = ?, mode = ?, override_schedule = ?, override_settings = ?, updated_at = ?
			WHERE id = ?`,
			loaded.Name, string(loaded.Mode),
			nullableRaw(loaded.Overrides.Schedule), nullableRaw(loaded.Overrides.Settings),
			database.FormatTime(loaded.UpdatedAt),
			loaded.ID,
		)
		if err != nil {
			return fmt.Errorf("updating device: %w", err)
		}
		if err := requireRow(result, ErrDeviceNotFound); err != nil {
			return err
		}
		d = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes a device. Heartbeats cascade through the foreign key.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting device: %w", err)
		}
		if err := requireRow(result, ErrDeviceNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pairing_codes WHERE device_id = ?`, id); err != nil {
			return fmt.Errorf("deleting pairing codes: %w", err)
		}
		return nil
	})
}

// CreatePairing stores a new pending code.
func (r *SQLiteRepository) CreatePairing(ctx context.Context, p *PairingCode, now time.Time) error {
	return database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		// A lapsed pending code may be reused.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pairing_codes WHERE code = ? AND device_id IS NULL AND expires_at <= ?`,
			p.Code, database.FormatTime(now),
		); err != nil {
			return fmt.Errorf("clearing expired code: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO pairing_codes (code, expires_at, created_at) VALUES (?, ?, ?)`,
			p.Code, database.FormatTime(p.ExpiresAt), database.FormatTime(p.CreatedAt),
		)
		if database.IsUniqueViolation(err) {
			return ErrCodeCollision
		}
		if err != nil {
			return fmt.Errorf("inserting pairing code: %w", err)
		}
		return nil
	})
}

// GetPairing retrieves a pairing code.
func (r *SQLiteRepository) GetPairing(ctx context.Context, code string) (*PairingCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, expires_at, created_at, device_id, claimed_at
		FROM pairing_codes WHERE code = ?`, code)
	p, err := scanPairing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeInvalid
		}
		return nil, fmt.Errorf("querying pairing code: %w", err)
	}
	return p, nil
}

// ListPendingPairings returns unclaimed, unexpired codes, soonest expiry first.
func (r *SQLiteRepository) ListPendingPairings(ctx context.Context, now time.Time) ([]PairingCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, expires_at, created_at, device_id, claimed_at
		FROM pairing_codes
		WHERE device_id IS NULL AND expires_at > ?
		ORDER BY expires_at`, database.FormatTime(now))
	if err != nil {
		return nil, fmt.Errorf("querying pending pairings: %w", err)
	}
	defer rows.Close()

	codes := []PairingCode{}
	for rows.Next() {
		p, err := scanPairing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pairing code: %w", err)
		}
		codes = append(codes, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairing codes: %w", err)
	}
	return codes, nil
}

// ClaimPairing creates the device and resolves the code atomically.
//
// Checks run in order: unknown code, already claimed, expired. The final
// UPDATE only matches an unclaimed row, which closes the race between two
// claims that both passed the checks.
func (r *SQLiteRepository) ClaimPairing(ctx context.Context, code string, d *Device, now time.Time) error {
	return database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		var expiresAt string
		var deviceID sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT expires_at, device_id FROM pairing_codes WHERE code = ?`, code,
		).Scan(&expiresAt, &deviceID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeInvalid
		}
		if err != nil {
			return fmt.Errorf("reading pairing code: %w", err)
		}
		if deviceID.Valid {
			return ErrCodeAlreadyClaimed
		}
		expiry, err := database.ParseTime(expiresAt)
		if err != nil {
			return err
		}
		if !now.Before(expiry) {
			return ErrCodeExpired
		}

		status, metrics, err := encodeSnapshots(d)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO devices (id, name, mode, paired_at, status, metrics, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Name, string(d.Mode), database.NullableTime(d.PairedAt),
			status, metrics,
			database.FormatTime(d.CreatedAt), database.FormatTime(d.UpdatedAt),
		)
		if database.IsUniqueViolation(err) {
			return ErrDeviceExists
		}
		if err != nil {
			return fmt.Errorf("inserting device: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE pairing_codes SET device_id = ?, claimed_at = ? WHERE code = ? AND device_id IS NULL`,
			d.ID, database.FormatTime(now), code,
		)
		if err != nil {
			return fmt.Errorf("resolving pairing code: %w", err)
		}
		return requireRow(result, ErrCodeAlreadyClaimed)
	})
}

// PurgePairings deletes stale pairing codes.
func (r *SQLiteRepository) PurgePairings(ctx context.Context, expiredBefore, claimedBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE (device_id IS NULL AND expires_at <= ?)
		   OR (device_id IS NOT NULL AND claimed_at <= ?)`,
		database.FormatTime(expiredBefore), database.FormatTime(claimedBefore),
	)
	if err != nil {
		return 0, fmt.Errorf("purging pairing codes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*Device, error) {
	var (
		d                          Device
		mode                       string
		pairedAt, lastSeen         sql.NullString
		status, metrics            string
		overSchedule, overSettings sql.NullString
		createdAt, updatedAt       string
	)
	if err := row.Scan(&d.ID, &d.Name, &mode, &pairedAt, &lastSeen, &status, &metrics,
		&overSchedule, &overSettings, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.Mode = Mode(mode)

	var err error
	if d.PairedAt, err = database.NullTime(pairedAt); err != nil {
		return nil, err
	}
	if d.LastSeenAt, err = database.NullTime(lastSeen); err != nil {
		return nil, err
	}
	if d.LastSeenAt != nil {
		d.LastSeen = d.LastSeenAt.Unix()
	}
	if d.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}

	// Snapshots are written by this package and telemetry only; a corrupt
	// blob degrades to an empty snapshot rather than hiding the device.
	d.Status = decodeSnapshot(status)
	d.Metrics = decodeSnapshot(metrics)

	if overSchedule.Valid && overSchedule.String != "" {
		d.Overrides.Schedule = json.RawMessage(overSchedule.String)
	}
	if overSettings.Valid && overSettings.String != "" {
		d.Overrides.Settings = json.RawMessage(overSettings.String)
	}
	return &d, nil
}

func scanPairing(row scanner) (*PairingCode, error) {
	var (
		p                    PairingCode
		expiresAt, createdAt string
		deviceID, claimedAt  sql.NullString
	)
	if err := row.Scan(&p.Code, &expiresAt, &createdAt, &deviceID, &claimedAt); err != nil {
		return nil, err
	}

	var err error
	if p.ExpiresAt, err = database.ParseTime(expiresAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if deviceID.Valid {
		id := deviceID.String
		p.DeviceID = &id
	}
	if p.ClaimedAt, err = database.NullTime(claimedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeSnapshot(s string) map[string]any {
	m := map[string]any{}
	if s == "" {
		return m
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func encodeSnapshots(d *Device) (status, metrics string, err error) {
	encode := func(m map[string]any) (string, error) {
		if m == nil {
			return "{}", nil
		}
		b, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("marshalling snapshot: %w", err)
		}
		return string(b), nil
	}
	if status, err = encode(d.Status); err != nil {
		return "", "", err
	}
	if metrics, err = encode(d.Metrics); err != nil {
		return "", "", err
	}
	return status, metrics, nil
}

// nullableRaw returns nil for an absent override so the column stays NULL.
func nullableRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
