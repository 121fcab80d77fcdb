package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedUsername is the account created on first boot.
const SeedUsername = "admin"

// SeedAdmin creates the initial admin account if no operators exist.
// It returns the generated password, or "" when seeding was skipped.
// The caller must show the password to the person installing the system.
func SeedAdmin(ctx context.Context, repo OperatorRepository) (string, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking operator count: %w", err)
	}
	if count > 0 {
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Operator{
		Username:     SeedUsername,
		DisplayName:  "Fleet Administrator",
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}
	return password, nil
}
