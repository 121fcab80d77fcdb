package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database/dbtest"
)

func TestSeedAdminAndLogin(t *testing.T) {
	repo := NewOperatorRepository(dbtest.OpenSQL(t))
	ctx := context.Background()

	password, err := SeedAdmin(ctx, repo)
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if len(password) != 2*seedPasswordBytes {
		t.Fatalf("seed password length = %d", len(password))
	}

	again, err := SeedAdmin(ctx, repo)
	if err != nil || again != "" {
		t.Errorf("second SeedAdmin() = %q, %v; want skipped", again, err)
	}

	a := NewAuthenticator(repo, testSecret, 30*time.Minute)
	tok, err := a.Login(ctx, SeedUsername, password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok.Role != RoleAdmin || tok.TokenType != "Bearer" {
		t.Errorf("token = %+v", tok)
	}
	claims, err := ParseToken(tok.AccessToken, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("claims role = %q", claims.Role)
	}

	if _, err := a.Login(ctx, SeedUsername, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v", err)
	}
	if _, err := a.Login(ctx, "nobody", password); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown user) error = %v", err)
	}
}

func TestLogin_InactiveOperator(t *testing.T) {
	repo := NewOperatorRepository(dbtest.OpenSQL(t))
	ctx := context.Background()

	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &Operator{Username: "gone", PasswordHash: hash, Role: RoleViewer, IsActive: false}); err != nil {
		t.Fatal(err)
	}

	a := NewAuthenticator(repo, testSecret, 0)
	if _, err := a.Login(ctx, "gone", "correct-horse-battery"); !errors.Is(err, ErrOperatorInactive) {
		t.Errorf("Login() error = %v, want ErrOperatorInactive", err)
	}
}
