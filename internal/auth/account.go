// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the platform role of an account.
type Role string

// Known roles.
const (
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOrganizer, RoleParticipant, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code(CodeInvalidRole).
			With("role", s).
			Errorf("unknown role %q", s)
	}
	return r, nil
}

// emailRegex accepts the local@domain.tld shape: no whitespace, exactly one
// @, and at least one dot in the domain part.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@.]+$`)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email has the local@domain.tld shape.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeInvalidEmail).
			With("email", email).
			Errorf("email address is not valid")
	}
	return nil
}

// Account is a registered user.
// An empty PasswordHash means the account has no usable credential.
type Account struct {
	ID           ulid.ULID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// NewAccount creates an Account with a fresh ID. Inputs are expected to be
// validated by the caller; NewAccount only rejects values that would break
// the store's invariants.
func NewAccount(firstName, lastName, email, passwordHash string, role Role, now time.Time) (*Account, error) {
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID").With("role", string(role)).Errorf("invalid role")
	}
	return &Account{
		ID:           ulid.Make(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now.UTC(),
	}, nil
}

// PublicUser is the view of an account that may leave the service.
type PublicUser struct {
	ID        ulid.ULID
	FirstName string
	LastName  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Public strips credentials from the account.
func (a *Account) Public() *PublicUser {
	return &PublicUser{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

// CredentialPatch lists the account fields this subsystem may change after
// creation.
type CredentialPatch struct {
	PasswordHash string
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account.
	// Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// UpdatePassword applies patch to the account.
	// Returns ErrNotFound if no account has the given ID.
	UpdatePassword(ctx context.Context, id ulid.ULID, patch CredentialPatch) error
}
