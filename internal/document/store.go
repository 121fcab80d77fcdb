package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Store persists versioned documents in SQLite.
//
// All methods are safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a document store on an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Active returns the active document of type t.
// Returns ErrNotFound if none has been saved.
func (s *Store) Active(ctx context.Context, t Type) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT type, version, data, hash, is_active, created_at, updated_at
		FROM documents
		WHERE type = ? AND is_active = 1`, string(t))

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying active %s: %w", t, err)
	}
	return doc, nil
}

// Save stores data as the active document of type t.
//
// Identical canonical content keeps the current version and only bumps
// updated_at; created is false in that case. Otherwise a new version is
// inserted and every older version deactivated in the same transaction.
func (s *Store) Save(ctx context.Context, t Type, data json.RawMessage) (doc *Document, created bool, err error) {
	if _, err := ParseType(string(t)); err != nil {
		return nil, false, err
	}

	canon, err := Canonical(data)
	if err != nil {
		return nil, false, err
	}
	if err := validate(t, canon); err != nil {
		return nil, false, err
	}
	hash := Hash(canon)
	now := database.FormatTime(s.now())

	err = database.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var currentVersion int
		var currentHash string
		err := tx.QueryRowContext(ctx,
			`SELECT version, hash FROM documents WHERE type = ? AND is_active = 1`,
			string(t),
		).Scan(&currentVersion, &currentHash)

		switch {
		case err == nil && currentHash == hash:
			if _, err := tx.ExecContext(ctx,
				`UPDATE documents SET updated_at = ? WHERE type = ? AND version = ?`,
				now, string(t), currentVersion,
			); err != nil {
				return fmt.Errorf("touching %s v%d: %w", t, currentVersion, err)
			}
			created = false
		case err == nil || errors.Is(err, sql.ErrNoRows):
			var next int
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE type = ?`,
				string(t),
			).Scan(&next); err != nil {
				return fmt.Errorf("allocating %s version: %w", t, err)
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE documents SET is_active = 0 WHERE type = ? AND is_active = 1`,
				string(t),
			); err != nil {
				return fmt.Errorf("deactivating %s: %w", t, err)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO documents (type, version, data, hash, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, 1, ?, ?)`,
				string(t), next, string(canon), hash, now, now,
			); err != nil {
				return fmt.Errorf("inserting %s v%d: %w", t, next, err)
			}
			created = true
		default:
			return fmt.Errorf("reading active %s: %w", t, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	doc, err = s.Active(ctx, t)
	if err != nil {
		return nil, false, err
	}
	return doc, created, nil
}

// History returns up to limit versions of type t, newest first.
func (s *Store) History(ctx context.Context, t Type, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, version, data, hash, is_active, created_at, updated_at
		FROM documents
		WHERE type = ?
		ORDER BY version DESC
		LIMIT ?`, string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s history: %w", t, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s history: %w", t, err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s history: %w", t, err)
	}
	return docs, nil
}

// Fingerprint returns the modification time and content hash of the
// active document of type t. A missing document has a zero fingerprint.
func (s *Store) Fingerprint(ctx context.Context, t Type) (Fingerprint, error) {
	var hash, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, updated_at FROM documents WHERE type = ? AND is_active = 1`,
		string(t),
	).Scan(&hash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Fingerprint{}, nil
	}
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprinting %s: %w", t, err)
	}

	mod, err := database.ParseTime(updatedAt)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{ModTime: mod, Hash: hash}, nil
}

// EnsureDefaults stores a default document for every type that has no
// active version yet.
func (s *Store) EnsureDefaults(ctx context.Context) error {
	defaults := map[Type]any{
		TypeSchedule: DefaultSchedule(1),
		TypeSettings: DefaultSettings(),
	}
	for _, t := range Types {
		_, err := s.Active(ctx, t)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		raw, err := json.Marshal(defaults[t])
		if err != nil {
			return fmt.Errorf("encoding default %s: %w", t, err)
		}
		if _, _, err := s.Save(ctx, t, raw); err != nil {
			return fmt.Errorf("seeding default %s: %w", t, err)
		}
	}
	return nil
}

// validate checks the shape a document type requires. Schedules must pass
// ValidSchedule; settings must be an object.
func validate(t Type, canon []byte) error {
	var v any
	if err := json.Unmarshal(canon, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	switch t {
	case TypeSchedule:
		if !ValidSchedule(v) {
			return fmt.Errorf("%w: schedule needs a presets object and a numeric version", ErrInvalidData)
		}
	case TypeSettings:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("%w: settings must be a JSON object", ErrInvalidData)
		}
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc                  Document
		typ, data            string
		active               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&typ, &doc.Version, &data, &doc.Fingerprint, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Type = Type(typ)
	doc.Data = json.RawMessage(data)
	doc.IsActive = active == 1

	var err error
	if doc.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}
