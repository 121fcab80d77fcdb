package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database/dbtest"
)

func TestOperatorRepository_CRUD(t *testing.T) {
	repo := NewOperatorRepository(dbtest.OpenSQL(t))
	ctx := context.Background()

	op := &Operator{Username: "ops", PasswordHash: "x", Role: RoleOperator, IsActive: true}
	if err := repo.Create(ctx, op); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if op.ID == "" || op.DisplayName != "ops" || op.CreatedAt.IsZero() {
		t.Errorf("created operator = %+v", op)
	}

	byName, err := repo.GetByUsername(ctx, "ops")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if byName.ID != op.ID || byName.Role != RoleOperator || !byName.IsActive || byName.PasswordHash != "x" {
		t.Errorf("GetByUsername() = %+v", byName)
	}

	byName.Role = RoleAdmin
	byName.IsActive = false
	byName.DisplayName = "Site Ops"
	if err := repo.Update(ctx, byName); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := repo.UpdatePassword(ctx, op.ID, "y"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := repo.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Role != RoleAdmin || got.IsActive || got.DisplayName != "Site Ops" || got.PasswordHash != "y" {
		t.Errorf("after update = %+v", got)
	}

	if err := repo.Create(ctx, &Operator{Username: "viewer", PasswordHash: "x", Role: RoleViewer}); err != nil {
		t.Fatal(err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Username != "ops" || list[1].Username != "viewer" {
		t.Errorf("List() = %+v", list)
	}
	if n, err := repo.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count() = %d, %v", n, err)
	}

	if err := repo.Delete(ctx, op.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, op.ID); !errors.Is(err, ErrOperatorNotFound) {
		t.Errorf("GetByID() after delete error = %v", err)
	}
}

func TestOperatorRepository_Errors(t *testing.T) {
	repo := NewOperatorRepository(dbtest.OpenSQL(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &Operator{Username: "ops", PasswordHash: "x", Role: RoleViewer}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		op   *Operator
		want error
	}{
		{"duplicate", &Operator{Username: "ops", PasswordHash: "x", Role: RoleViewer}, ErrUsernameExists},
		{"bad username", &Operator{Username: "bad name", PasswordHash: "x", Role: RoleViewer}, ErrInvalidUsername},
		{"bad role", &Operator{Username: "other", PasswordHash: "x", Role: "owner"}, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.op); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := repo.Update(ctx, &Operator{ID: "op-missing", Role: RoleViewer}); !errors.Is(err, ErrOperatorNotFound) {
		t.Errorf("Update(missing) error = %v", err)
	}
	if err := repo.UpdatePassword(ctx, "op-missing", "x"); !errors.Is(err, ErrOperatorNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v", err)
	}
	if err := repo.Delete(ctx, "op-missing"); !errors.Is(err, ErrOperatorNotFound) {
		t.Errorf("Delete(missing) error = %v", err)
	}
}
