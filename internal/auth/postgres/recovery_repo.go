// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/eventhub/eventauth/internal/auth"
)

const recoveryColumns = `id, user_id, code_hash, expires_at, used, consumed_at, created_at`

// RecoveryCodeRepository implements auth.RecoveryCodeRepository using
// PostgreSQL. State transitions are single conditional UPDATE statements, so
// concurrent callers cannot both win the same transition.
type RecoveryCodeRepository struct {
	pool poolIface
}

// NewRecoveryCodeRepository creates a new RecoveryCodeRepository.
func NewRecoveryCodeRepository(pool poolIface) *RecoveryCodeRepository {
	return &RecoveryCodeRepository{pool: pool}
}

// ReplaceForUser locks the owning account row, invalidates the user's codes
// and inserts code in one transaction. The row lock serializes concurrent
// requests for the same user.
func (r *RecoveryCodeRepository) ReplaceForUser(ctx context.Context, code *auth.RecoveryCode) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, oops.Code("RECOVERY_CODE_REPLACE_FAILED").
			With("operation", "begin transaction").
			With("user_id", code.UserID.String()).
			Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // Rollback error after commit is meaningless
	}()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, code.UserID.String()).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", code.UserID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, replaceFailed(code, "lock account", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE recovery_codes SET used = TRUE, consumed_at = $2
		WHERE user_id = $1 AND consumed_at IS NULL
	`, code.UserID.String(), code.CreatedAt)
	if err != nil {
		return 0, replaceFailed(code, "invalidate codes", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO recovery_codes (id, user_id, code_hash, expires_at, used, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NULL, $5)
	`, code.ID.String(), code.UserID.String(), code.CodeHash, code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return 0, replaceFailed(code, "insert code", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, replaceFailed(code, "commit transaction", err)
	}
	return tag.RowsAffected(), nil
}

func replaceFailed(code *auth.RecoveryCode, operation string, err error) error {
	return oops.Code("RECOVERY_CODE_REPLACE_FAILED").
		With("operation", operation).
		With("user_id", code.UserID.String()).
		Wrap(err)
}

// MarkUsed flips the verifiable code matching (userID, codeHash) to used.
func (r *RecoveryCodeRepository) MarkUsed(ctx context.Context, userID ulid.ULID, codeHash string, now time.Time) (*auth.RecoveryCode, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE recovery_codes SET used = TRUE
		WHERE user_id = $1 AND code_hash = $2
		  AND used = FALSE AND consumed_at IS NULL AND expires_at > $3
		RETURNING `+recoveryColumns,
		userID.String(), codeHash, now)

	code, err := scanRecoveryCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RECOVERY_CODE_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RECOVERY_CODE_MARK_USED_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return code, nil
}

// Redeem consumes a verified, unexpired code.
func (r *RecoveryCodeRepository) Redeem(ctx context.Context, id ulid.ULID, now time.Time) (*auth.RecoveryCode, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE recovery_codes SET consumed_at = $2
		WHERE id = $1 AND used = TRUE AND consumed_at IS NULL AND expires_at > $2
		RETURNING `+recoveryColumns,
		id.String(), now)

	code, err := scanRecoveryCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RECOVERY_CODE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RECOVERY_CODE_REDEEM_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return code, nil
}

// PurgeExpired deletes codes that are expired or consumed.
func (r *RecoveryCodeRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM recovery_codes WHERE expires_at <= $1 OR consumed_at IS NOT NULL
	`, now)
	if err != nil {
		return 0, oops.Code("RECOVERY_CODE_PURGE_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// scanRecoveryCode scans a single row into a RecoveryCode.
// Query and scan errors are returned unwrapped so each caller attaches its
// own code.
func scanRecoveryCode(row pgx.Row) (*auth.RecoveryCode, error) {
	var (
		idStr, userIDStr     string
		c                    auth.RecoveryCode
		expiresAt, createdAt time.Time
		consumedAt           *time.Time
	)
	err := row.Scan(&idStr, &userIDStr, &c.CodeHash, &expiresAt, &c.Used, &consumedAt, &createdAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RECOVERY_CODE_INVALID_ID").With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RECOVERY_CODE_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}

	c.ID = id
	c.UserID = userID
	c.ExpiresAt = expiresAt.UTC()
	c.CreatedAt = createdAt.UTC()
	if consumedAt != nil {
		t := consumedAt.UTC()
		c.ConsumedAt = &t
	}
	return &c, nil
}

// Compile-time interface check.
var _ auth.RecoveryCodeRepository = (*RecoveryCodeRepository)(nil)
