// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
)

// RegisterRequest carries the registration input as submitted.
// Role is optional.
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

// RegistrationService creates accounts.
type RegistrationService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	policy   Policy
	notifier *Notifier
	opts     serviceOptions
}

// NewRegistrationService creates a RegistrationService. notifier may be nil.
func NewRegistrationService(
	accounts AccountRepository,
	hasher PasswordHasher,
	policy Policy,
	notifier *Notifier,
	opts ...Option,
) (*RegistrationService, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &RegistrationService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		notifier: notifier,
		opts:     applyOptions(opts),
	}, nil
}

// Register validates the request, stores a new account and sends a welcome
// notification in the background.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*PublicUser, error) {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	email := NormalizeEmail(req.Email)

	for _, f := range []struct{ name, value string }{
		{"firstName", firstName},
		{"lastName", lastName},
		{"email", email},
		{"password", req.Password},
	} {
		if f.value == "" {
			return nil, oops.Code(CodeMissingField).
				With("field", f.name).
				Errorf("%s is required", f.name)
		}
	}

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := s.policy.CheckPassword(req.Password); err != nil {
		return nil, err
	}
	role, err := s.policy.ResolveRole(req.Role)
	if err != nil {
		return nil, err
	}

	_, err = s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, emailInUse(email)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	account, err := NewAccount(firstName, lastName, email, hash, role, s.opts.now())
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "NewAccount").
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, emailInUse(email)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "account registered",
		"user_id", account.ID.String(),
		"role", string(account.Role))
	s.notifier.Dispatch(ctx, welcomeMessage(account))

	return account.Public(), nil
}

func emailInUse(email string) error {
	return oops.Code(CodeEmailInUse).
		With("email", email).
		Errorf("email is already registered")
}
