package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
)

// OperatorRepository defines the interface for operator account persistence.
type OperatorRepository interface {
	Create(ctx context.Context, op *Operator) error
	GetByID(ctx context.Context, id string) (*Operator, error)
	GetByUsername(ctx context.Context, username string) (*Operator, error)
	List(ctx context.Context) ([]Operator, error)
	Update(ctx context.Context, op *Operator) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteOperatorRepository implements OperatorRepository using SQLite.
type SQLiteOperatorRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOperatorRepository creates a new SQLite-backed operator repository.
func NewOperatorRepository(db *sql.DB) *SQLiteOperatorRepository {
	return &SQLiteOperatorRepository{db: db, now: time.Now}
}

const operatorColumns = "id, username, display_name, password_hash, role, is_active, created_at, updated_at"

// Create inserts a new operator. The ID is generated if empty.
func (r *SQLiteOperatorRepository) Create(ctx context.Context, op *Operator) error {
	if !IsValidUsername(op.Username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, op.Username)
	}
	if _, err := ParseRole(string(op.Role)); err != nil {
		return err
	}
	if op.ID == "" {
		op.ID = "op-" + uuid.NewString()[:8]
	}
	if op.DisplayName == "" {
		op.DisplayName = op.Username
	}

	now := r.now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operators (`+operatorColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.Username, op.DisplayName, op.PasswordHash,
		string(op.Role), boolToInt(op.IsActive),
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating operator: %w", err)
	}
	return nil
}

// GetByID retrieves an operator by ID.
func (r *SQLiteOperatorRepository) GetByID(ctx context.Context, id string) (*Operator, error) {
	return scanOperator(r.db.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE id = ?", id))
}

// GetByUsername retrieves an operator by username.
func (r *SQLiteOperatorRepository) GetByUsername(ctx context.Context, username string) (*Operator, error) {
	return scanOperator(r.db.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE username = ?", username))
}

// List returns all operators ordered by username.
func (r *SQLiteOperatorRepository) List(ctx context.Context) ([]Operator, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+operatorColumns+" FROM operators ORDER BY username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing operators: %w", err)
	}
	defer rows.Close()

	ops := []Operator{}
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operators: %w", err)
	}
	return ops, nil
}

// Update modifies an operator's display name, role and active flag.
func (r *SQLiteOperatorRepository) Update(ctx context.Context, op *Operator) error {
	if _, err := ParseRole(string(op.Role)); err != nil {
		return err
	}
	now := r.now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE operators SET display_name = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		op.DisplayName, string(op.Role), boolToInt(op.IsActive), database.FormatTime(now), op.ID,
	)
	if err != nil {
		return fmt.Errorf("updating operator: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	op.UpdatedAt = now
	return nil
}

// UpdatePassword replaces an operator's password hash.
func (r *SQLiteOperatorRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE operators SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, database.FormatTime(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireAffected(result)
}

// Delete removes an operator by ID.
func (r *SQLiteOperatorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM operators WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting operator: %w", err)
	}
	return requireAffected(result)
}

// Count returns the number of operator accounts.
func (r *SQLiteOperatorRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return count, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanOperator(s scanner) (*Operator, error) {
	var (
		op                   Operator
		role                 string
		isActive             int
		createdAt, updatedAt string
	)
	err := s.Scan(&op.ID, &op.Username, &op.DisplayName, &op.PasswordHash,
		&role, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("scanning operator: %w", err)
	}

	op.Role = Role(role)
	op.IsActive = isActive != 0
	if op.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if op.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &op, nil
}

func requireAffected(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrOperatorNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
