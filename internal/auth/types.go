package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read devices, pairings, documents and the audit trail.
	RoleViewer Role = "viewer"

	// RoleOperator runs the fleet day to day: claims codes, renames
	// displays, sets overrides and unpairs.
	RoleOperator Role = "operator"

	// RoleAdmin can do everything, including replacing the global
	// schedule and settings.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role, least privileged first.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// ParseRole validates a role name. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidRoles {
		if r == v {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Operator is a human account allowed to use the admin API.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrOperatorNotFound   = errors.New("auth: operator not found")
	ErrOperatorInactive   = errors.New("auth: operator account is inactive")
	ErrUsernameExists     = errors.New("auth: username already exists")
	ErrInvalidUsername    = errors.New("auth: invalid username")
	ErrInvalidRole        = errors.New("auth: invalid role")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrForbidden          = errors.New("auth: insufficient permissions")
)
