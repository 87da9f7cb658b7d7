// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/eventhub/eventauth/pkg/errutil"
)

// dummyPasswordHash is verified against when the email is unknown so the
// response time does not reveal whether an account exists. It matches no
// password.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Role      Role
	FirstName string
}

// AuthService authenticates accounts and verifies bearer tokens.
// It writes nothing: no session rows, no last-login bookkeeping.
type AuthService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	opts     serviceOptions
}

// NewAuthService creates an AuthService.
func NewAuthService(accounts AccountRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) (*AuthService, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		opts:     applyOptions(opts),
	}, nil
}

// Login verifies the password of the account registered under email and
// issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code(CodeMissingField).With("field", "email").Errorf("email is required")
	}
	if password == "" {
		return nil, oops.Code(CodeMissingField).With("field", "password").Errorf("password is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
			return nil, oops.Code(CodeUserNotFound).Errorf("no account is registered with this email")
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	if account.PasswordHash == "" {
		s.opts.logger.ErrorContext(ctx, "account has no stored password hash",
			"user_id", account.ID.String())
		return nil, misconfigured(account)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		errutil.LogError(ctx, s.opts.logger, "stored password hash is unreadable", err,
			"user_id", account.ID.String())
		return nil, misconfigured(account)
	}
	if !ok {
		return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
	}

	issued, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "Issue").
			With("user_id", account.ID.String()).
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "login succeeded", "user_id", account.ID.String())

	return &LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Role:      account.Role,
		FirstName: account.FirstName,
	}, nil
}

// Authenticate verifies a bearer token. No store lookup happens: a token is
// valid until it expires.
func (s *AuthService) Authenticate(_ context.Context, token string) (*Principal, error) {
	principal, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries a TOKEN_* code
	}
	return principal, nil
}

func misconfigured(account *Account) error {
	return oops.Code(CodeAccountMisconfigured).
		With("user_id", account.ID.String()).
		Errorf("account credentials are not usable")
}
