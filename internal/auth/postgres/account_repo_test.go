// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/pkg/errutil"
)

var accountCols = []string{"id", "first_name", "last_name", "email", "password_hash", "role", "created_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func testAccount() *auth.Account {
	return &auth.Account{
		ID:           ulid.Make(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "$argon2id$hash",
		Role:         auth.RoleOrganizer,
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	a := testAccount()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, err error)
	}{
		{
			name: "inserts account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(a.ID.String(), "Ada", "Lovelace", "ada@example.com", "$argon2id$hash", "organizer", a.CreatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			check: func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name: "unique violation maps to email taken",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, auth.ErrEmailTaken)
			},
		},
		{
			name: "other failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.NotErrorIs(t, err, auth.ErrEmailTaken)
				errutil.AssertErrorCode(t, err, "ACCOUNT_CREATE_FAILED")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			tt.setupMock(mock)
			tt.check(t, NewAccountRepository(mock).Create(ctx, a))
		})
	}
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	a := testAccount()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email = \$1`).
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(accountCols).
				AddRow(a.ID.String(), "Ada", "Lovelace", "ada@example.com", "$argon2id$hash", "organizer", a.CreatedAt))

		got, err := NewAccountRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email = \$1`).
			WithArgs("nobody@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewAccountRepository(mock).GetByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email = \$1`).
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(accountCols).
				AddRow("not-a-ulid", "Ada", "Lovelace", "ada@example.com", "h", "organizer", a.CreatedAt))

		_, err := NewAccountRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	a := testAccount()

	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
		WithArgs(a.ID.String()).
		WillReturnRows(pgxmock.NewRows(accountCols).
			AddRow(a.ID.String(), "Ada", "Lovelace", "ada@example.com", "$argon2id$hash", "organizer", a.CreatedAt))
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := NewAccountRepository(mock)
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.GetByID(ctx, ulid.Make())
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountRepository_LookupFailureCodes(t *testing.T) {
	ctx := context.Background()
	a := testAccount()

	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
		WithArgs(a.ID.String()).
		WillReturnError(errors.New("conn reset"))
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email = \$1`).
		WithArgs(a.Email).
		WillReturnError(errors.New("conn reset"))

	repo := NewAccountRepository(mock)
	_, err := repo.GetByID(ctx, a.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
	errutil.AssertErrorCode(t, err, "ACCOUNT_GET_BY_ID_FAILED")

	_, err = repo.GetByEmail(ctx, a.Email)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ACCOUNT_GET_BY_EMAIL_FAILED")
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("updates hash", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE accounts SET password_hash = \$2`).
			WithArgs(id.String(), "new-hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewAccountRepository(mock).UpdatePassword(ctx, id, auth.CredentialPatch{PasswordHash: "new-hash"}))
	})

	t.Run("missing account", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE accounts SET password_hash = \$2`).
			WithArgs(id.String(), "new-hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewAccountRepository(mock).UpdatePassword(ctx, id, auth.CredentialPatch{PasswordHash: "new-hash"})
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("empty hash is refused", func(t *testing.T) {
		mock := newMockPool(t)
		err := NewAccountRepository(mock).UpdatePassword(ctx, id, auth.CredentialPatch{})
		errutil.AssertErrorCode(t, err, "ACCOUNT_UPDATE_PASSWORD_FAILED")
	})
}
