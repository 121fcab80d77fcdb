package auth

import (
	"context"
	"errors"
	"time"
)

// dummyHash is verified against when the username is unknown so that
// both failure paths cost one Argon2id derivation.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$c29tZXNhbHRzb21lc2FsdA$VOhwvyKHFyYdFVcOQHKlPkJ8U1JnSS0vj6gQqY2nGmk"

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Role        Role      `json:"role"`
}

// Authenticator checks operator credentials and issues tokens.
type Authenticator struct {
	repo   OperatorRepository
	secret string
	ttl    time.Duration
}

// NewAuthenticator creates an authenticator signing tokens with secret.
func NewAuthenticator(repo OperatorRepository, secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{repo: repo, secret: secret, ttl: ttl}
}

// Login verifies username and password and returns a signed token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Token, error) {
	op, err := a.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrOperatorNotFound) {
		VerifyPassword(password, dummyHash) //nolint:errcheck // timing equaliser only
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := VerifyPassword(password, op.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !op.IsActive {
		return nil, ErrOperatorInactive
	}

	signed, err := GenerateAccessToken(op.ID, op.Role, a.secret, a.ttl)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(a.ttl).UTC(),
		Role:        op.Role,
	}, nil
}
