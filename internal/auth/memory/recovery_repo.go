// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/eventhub/eventauth/internal/auth"
)

// RecoveryCodeRepository stores recovery codes in memory. A single mutex
// serializes every operation, which makes each one atomic.
type RecoveryCodeRepository struct {
	mu    sync.Mutex
	codes map[ulid.ULID]*auth.RecoveryCode
}

var _ auth.RecoveryCodeRepository = (*RecoveryCodeRepository)(nil)

// NewRecoveryCodeRepository creates an empty RecoveryCodeRepository.
func NewRecoveryCodeRepository() *RecoveryCodeRepository {
	return &RecoveryCodeRepository{codes: make(map[ulid.ULID]*auth.RecoveryCode)}
}

// ReplaceForUser implements auth.RecoveryCodeRepository.
func (r *RecoveryCodeRepository) ReplaceForUser(_ context.Context, code *auth.RecoveryCode) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codes[code.ID]; exists {
		return 0, oops.Code("RECOVERY_CODE_CREATE_FAILED").
			With("id", code.ID.String()).
			Errorf("recovery code already exists")
	}
	n := r.invalidateLocked(code.UserID, code.CreatedAt)
	stored := *code
	r.codes[code.ID] = &stored
	return n, nil
}

func (r *RecoveryCodeRepository) invalidateLocked(userID ulid.ULID, now time.Time) int64 {
	var n int64
	for _, c := range r.codes {
		if c.UserID != userID || c.ConsumedAt != nil {
			continue
		}
		consumedAt := now.UTC()
		c.Used = true
		c.ConsumedAt = &consumedAt
		n++
	}
	return n
}

// MarkUsed implements auth.RecoveryCodeRepository.
func (r *RecoveryCodeRepository) MarkUsed(_ context.Context, userID ulid.ULID, codeHash string, now time.Time) (*auth.RecoveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.UserID == userID && c.CodeHash == codeHash && c.Verifiable(now) {
			c.Used = true
			return clone(c), nil
		}
	}
	return nil, oops.Code("RECOVERY_CODE_NOT_FOUND").With("user_id", userID.String()).Wrap(auth.ErrNotFound)
}

// Redeem implements auth.RecoveryCodeRepository.
func (r *RecoveryCodeRepository) Redeem(_ context.Context, id ulid.ULID, now time.Time) (*auth.RecoveryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok || !c.Redeemable(now) {
		return nil, oops.Code("RECOVERY_CODE_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	consumedAt := now.UTC()
	c.ConsumedAt = &consumedAt
	return clone(c), nil
}

// PurgeExpired implements auth.RecoveryCodeRepository.
func (r *RecoveryCodeRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.codes {
		if c.IsExpired(now) || c.ConsumedAt != nil {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}

// LiveCount returns the number of codes of the user that are unused and
// unexpired at now.
func (r *RecoveryCodeRepository) LiveCount(userID ulid.ULID, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.codes {
		if c.UserID == userID && !c.Used && !c.IsExpired(now) {
			n++
		}
	}
	return n
}

func clone(c *auth.RecoveryCode) *auth.RecoveryCode {
	out := *c
	if c.ConsumedAt != nil {
		t := *c.ConsumedAt
		out.ConsumedAt = &t
	}
	return &out
}
