// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/eventhub/eventauth/pkg/errutil"
)

// RecoveryConfig configures the password recovery flow.
type RecoveryConfig struct {
	// CodeTTL is how long an issued code stays verifiable. Zero means
	// DefaultRecoveryCodeTTL. A verified code may be redeemed until the same
	// instant.
	CodeTTL time.Duration

	// CodeKey keys the HMAC under which codes are stored. Required.
	CodeKey []byte
}

// CodeIssued is the result of RequestCode. It never carries the code.
type CodeIssued struct {
	UserID    ulid.ULID
	ExpiresAt time.Time
}

// CodeVerified is the result of VerifyCode. ResetID authorizes exactly one
// ResetPassword call.
type CodeVerified struct {
	ResetID   ulid.ULID
	ExpiresAt time.Time
}

// RecoveryService drives the password reset flow:
// request code, verify code, reset password. Each step is authorized only
// by the stored code state; the service keeps no state between calls.
type RecoveryService struct {
	accounts AccountRepository
	codes    RecoveryCodeRepository
	hasher   PasswordHasher
	policy   Policy
	notifier *Notifier
	codeTTL  time.Duration
	codeKey  []byte
	opts     serviceOptions
}

// NewRecoveryService creates a RecoveryService. notifier may be nil.
func NewRecoveryService(
	accounts AccountRepository,
	codes RecoveryCodeRepository,
	hasher PasswordHasher,
	policy Policy,
	notifier *Notifier,
	cfg RecoveryConfig,
	opts ...Option,
) (*RecoveryService, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if codes == nil {
		return nil, oops.Errorf("recovery code repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	ttl := cfg.CodeTTL
	if ttl == 0 {
		ttl = DefaultRecoveryCodeTTL
	}
	if ttl < 0 {
		return nil, oops.Code("RECOVERY_CONFIG_INVALID").
			With("code_ttl", ttl.String()).
			Errorf("code ttl must be positive")
	}
	if len(cfg.CodeKey) == 0 {
		return nil, oops.Code("RECOVERY_CONFIG_INVALID").Errorf("code key is required")
	}
	return &RecoveryService{
		accounts: accounts,
		codes:    codes,
		hasher:   hasher,
		policy:   policy,
		notifier: notifier,
		codeTTL:  ttl,
		codeKey:  cfg.CodeKey,
		opts:     applyOptions(opts),
	}, nil
}

// RequestCode issues a new recovery code for the account registered under
// email, invalidating every earlier code of that account, and sends it in
// the background.
func (s *RecoveryService) RequestCode(ctx context.Context, email string) (*CodeIssued, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code(CodeMissingField).With("field", "email").Errorf("email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).Errorf("no account is registered with this email")
		}
		return nil, oops.Code("RECOVERY_REQUEST_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	code, codeHash, err := GenerateRecoveryCode(s.codeKey)
	if err != nil {
		return nil, err
	}
	row, err := NewRecoveryCode(account.ID, codeHash, s.opts.now(), s.codeTTL)
	if err != nil {
		return nil, oops.Code("RECOVERY_REQUEST_FAILED").
			With("operation", "NewRecoveryCode").
			Wrap(err)
	}

	invalidated, err := s.codes.ReplaceForUser(ctx, row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			errutil.LogWarn(ctx, s.opts.logger, "account removed while issuing recovery code", err,
				"user_id", account.ID.String())
			return nil, oops.Code(CodeUserNotFound).Errorf("no account is registered with this email")
		}
		return nil, oops.Code("RECOVERY_REQUEST_FAILED").
			With("operation", "ReplaceForUser").
			With("user_id", account.ID.String()).
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "recovery code issued",
		"user_id", account.ID.String(),
		"invalidated", invalidated,
		"expires_at", row.ExpiresAt)
	s.notifier.Dispatch(ctx, recoveryCodeMessage(account, code, row.ExpiresAt))

	return &CodeIssued{UserID: account.ID, ExpiresAt: row.ExpiresAt}, nil
}

// VerifyCode consumes a live code of the user and returns the reset
// identifier. Wrong, expired, replaced and already verified codes all fail
// with the same RECOVERY_INVALID_CODE error.
func (s *RecoveryService) VerifyCode(ctx context.Context, userID, code string) (*CodeVerified, error) {
	if !ValidCodeShape(code) {
		return nil, oops.Code(CodeRecoveryCodeMalformed).
			Errorf("code must be exactly %d digits", RecoveryCodeDigits)
	}
	uid, err := ulid.Parse(userID)
	if err != nil {
		return nil, invalidCode()
	}

	row, err := s.codes.MarkUsed(ctx, uid, HashRecoveryCode(s.codeKey, code), s.opts.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.logger.DebugContext(ctx, "recovery code rejected", "user_id", uid.String())
			return nil, invalidCode()
		}
		return nil, oops.Code("RECOVERY_VERIFY_FAILED").
			With("operation", "MarkUsed").
			With("user_id", uid.String()).
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "recovery code verified",
		"user_id", uid.String(),
		"reset_id", row.ID.String())

	return &CodeVerified{ResetID: row.ID, ExpiresAt: row.ExpiresAt}, nil
}

// ResetPassword sets a new password for the owner of a verified code. The
// reset identifier is consumed by the first call that gets past the password
// policy; replays fail with RECOVERY_RESET_INVALID.
//
// If the password update itself fails after the identifier was consumed, the
// user has to start over with a new code.
func (s *RecoveryService) ResetPassword(ctx context.Context, resetID, newPassword string) error {
	if resetID == "" {
		return oops.Code(CodeMissingField).With("field", "resetId").Errorf("resetId is required")
	}
	if newPassword == "" {
		return oops.Code(CodeMissingField).With("field", "newPassword").Errorf("newPassword is required")
	}
	id, err := ulid.Parse(resetID)
	if err != nil {
		return resetInvalid()
	}

	if err := s.policy.CheckPassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RECOVERY_RESET_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	row, err := s.codes.Redeem(ctx, id, s.opts.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return resetInvalid()
		}
		return oops.Code("RECOVERY_RESET_FAILED").
			With("operation", "Redeem").
			With("reset_id", id.String()).
			Wrap(err)
	}

	account, err := s.accounts.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			errutil.LogWarn(ctx, s.opts.logger, "recovery code owner no longer exists", err,
				"reset_id", id.String(), "user_id", row.UserID.String())
			return oops.Code(CodeUserNotFound).Errorf("account no longer exists")
		}
		return oops.Code("RECOVERY_RESET_FAILED").
			With("operation", "GetByID").
			With("user_id", row.UserID.String()).
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, CredentialPatch{PasswordHash: hash}); err != nil {
		return oops.Code("RECOVERY_RESET_FAILED").
			With("operation", "UpdatePassword").
			With("user_id", account.ID.String()).
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "password reset", "user_id", account.ID.String())
	s.notifier.Dispatch(ctx, passwordChangedMessage(account))
	return nil
}

// PurgeExpired deletes recovery codes that are expired or consumed.
func (s *RecoveryService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.codes.PurgeExpired(ctx, s.opts.now())
	if err != nil {
		return 0, oops.Code("RECOVERY_PURGE_FAILED").Wrap(err)
	}
	if n > 0 {
		s.opts.logger.InfoContext(ctx, "purged recovery codes", "count", n)
	}
	return n, nil
}

func invalidCode() error {
	return oops.Code(CodeRecoveryCodeInvalid).Errorf("invalid or expired code")
}

func resetInvalid() error {
	return oops.Code(CodeResetInvalid).Errorf("reset request is invalid or expired")
}
