// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Recovery code configuration.
const (
	RecoveryCodeDigits     = 6
	DefaultRecoveryCodeTTL = 15 * time.Minute
)

var recoveryCodeSpace = big.NewInt(1_000_000)

// RecoveryCode is one issued password recovery code. Its ID is also the
// reset identifier handed out after successful verification.
//
// Used flips to true at verification or when a newer code invalidates this
// one. ConsumedAt is set once the row can no longer authorize anything:
// after a password reset or after invalidation.
type RecoveryCode struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	CodeHash   string
	ExpiresAt  time.Time
	Used       bool
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// NewRecoveryCode creates an unused recovery code valid for ttl from now.
func NewRecoveryCode(userID ulid.ULID, codeHash string, now time.Time, ttl time.Duration) (*RecoveryCode, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RECOVERY_CODE_BAD_INPUT").Errorf("user id cannot be zero")
	}
	if codeHash == "" {
		return nil, oops.Code("RECOVERY_CODE_BAD_INPUT").Errorf("code hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("RECOVERY_CODE_BAD_INPUT").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}
	now = now.UTC()
	return &RecoveryCode{
		ID:        ulid.Make(),
		UserID:    userID,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsExpired reports whether the code has expired at now.
func (c *RecoveryCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Verifiable reports whether the code can still pass verification at now.
func (c *RecoveryCode) Verifiable(now time.Time) bool {
	return !c.Used && c.ConsumedAt == nil && !c.IsExpired(now)
}

// Redeemable reports whether the verified code can still authorize a
// password change at now.
func (c *RecoveryCode) Redeemable(now time.Time) bool {
	return c.Used && c.ConsumedAt == nil && !c.IsExpired(now)
}

// GenerateRecoveryCode returns a uniformly random 6-digit code, leading zeros
// kept, and its hash under key.
func GenerateRecoveryCode(key []byte) (code, hash string, err error) {
	n, err := rand.Int(rand.Reader, recoveryCodeSpace)
	if err != nil {
		return "", "", oops.Code("RECOVERY_CODE_GENERATE_FAILED").Wrap(err)
	}
	code = fmt.Sprintf("%0*d", RecoveryCodeDigits, n.Int64())
	return code, HashRecoveryCode(key, code), nil
}

// HashRecoveryCode computes the hex HMAC-SHA256 of a code under key. Codes
// are stored and looked up by hash only.
func HashRecoveryCode(key []byte, code string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidCodeShape reports whether code is exactly six ASCII digits.
func ValidCodeShape(code string) bool {
	if len(code) != RecoveryCodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// RecoveryCodeRepository manages recovery code persistence. Implementations
// must make ReplaceForUser, MarkUsed and Redeem atomic with respect to
// concurrent callers.
type RecoveryCodeRepository interface {
	// ReplaceForUser invalidates every code of code.UserID that can still
	// authorize something and stores code, as one atomic step.
	// Returns the number of invalidated codes.
	ReplaceForUser(ctx context.Context, code *RecoveryCode) (int64, error)

	// MarkUsed atomically flips the verifiable code matching (userID,
	// codeHash) to used and returns it.
	// Returns ErrNotFound if no verifiable code matches.
	MarkUsed(ctx context.Context, userID ulid.ULID, codeHash string, now time.Time) (*RecoveryCode, error)

	// Redeem atomically consumes the redeemable code with the given ID and
	// returns it.
	// Returns ErrNotFound if the code does not exist or is not redeemable.
	Redeem(ctx context.Context, id ulid.ULID, now time.Time) (*RecoveryCode, error)

	// PurgeExpired deletes codes that are expired or consumed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
