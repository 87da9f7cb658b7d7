// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// MaxPasswordLength caps the input handed to the hasher.
const MaxPasswordLength = 128

// Policy is the single password and default-role policy applied by
// registration and password reset.
type Policy struct {
	MinLength     int
	RequireLetter bool
	RequireDigit  bool
	RequireUpper  bool
	RequireSymbol bool
	DefaultRole   Role
}

// DefaultPolicy returns the policy used when nothing is configured:
// at least 6 characters, with at least one letter and one digit.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     6,
		RequireLetter: true,
		RequireDigit:  true,
		DefaultRole:   RoleParticipant,
	}
}

// Validate checks the policy itself.
func (p Policy) Validate() error {
	if p.MinLength < 1 || p.MinLength > MaxPasswordLength {
		return oops.Code("POLICY_INVALID").
			With("min_length", p.MinLength).
			Errorf("min length must be between 1 and %d", MaxPasswordLength)
	}
	if !p.DefaultRole.Valid() {
		return oops.Code("POLICY_INVALID").
			With("default_role", string(p.DefaultRole)).
			Errorf("default role is not a known role")
	}
	return nil
}

// CheckPassword returns AUTH_PASSWORD_TOO_WEAK naming the first rule the
// password breaks.
func (p Policy) CheckPassword(password string) error {
	n := len([]rune(password))
	if n < p.MinLength {
		return weak("min_length", "password must be at least %d characters", p.MinLength)
	}
	if n > MaxPasswordLength {
		return weak("max_length", "password must be at most %d characters", MaxPasswordLength)
	}

	var letter, digit, upper, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
			if unicode.IsUpper(r) {
				upper = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case p.RequireLetter && !letter:
		return weak("letter", "password must contain a letter")
	case p.RequireDigit && !digit:
		return weak("digit", "password must contain a digit")
	case p.RequireUpper && !upper:
		return weak("upper", "password must contain an upper-case letter")
	case p.RequireSymbol && !symbol:
		return weak("symbol", "password must contain a symbol")
	}
	return nil
}

// ResolveRole returns the requested role, or the default role when none was
// requested.
func (p Policy) ResolveRole(requested string) (Role, error) {
	if strings.TrimSpace(requested) == "" {
		return p.DefaultRole, nil
	}
	return ParseRole(requested)
}

func weak(rule, format string, args ...any) error {
	return oops.Code(CodePasswordTooWeak).
		With("rule", rule).
		Errorf(format, args...)
}
