// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/samber/oops"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/internal/auth/mocks"
	"github.com/eventhub/eventauth/pkg/errutil"
)

type recoveryFixture struct {
	accounts *mocks.MockAccountRepository
	codes    *mocks.MockRecoveryCodeRepository
	hasher   *mocks.MockPasswordHasher
	clock    *fakeClock
	svc      *auth.RecoveryService
}

func newRecoveryFixture(t *testing.T, notifier *auth.Notifier) *recoveryFixture {
	t.Helper()
	f := &recoveryFixture{
		accounts: mocks.NewMockAccountRepository(t),
		codes:    mocks.NewMockRecoveryCodeRepository(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		clock:    newFakeClock(),
	}
	svc, err := auth.NewRecoveryService(f.accounts, f.codes, f.hasher, auth.DefaultPolicy(), notifier,
		auth.RecoveryConfig{CodeTTL: 15 * time.Minute, CodeKey: testCodeKey}, auth.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewRecoveryService_Validation(t *testing.T) {
	accounts := mocks.NewMockAccountRepository(t)
	codes := mocks.NewMockRecoveryCodeRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	_, err := auth.NewRecoveryService(nil, codes, hasher, auth.DefaultPolicy(), nil, auth.RecoveryConfig{})
	assert.ErrorContains(t, err, "account repository is required")
	_, err = auth.NewRecoveryService(accounts, nil, hasher, auth.DefaultPolicy(), nil, auth.RecoveryConfig{})
	assert.ErrorContains(t, err, "recovery code repository is required")
	_, err = auth.NewRecoveryService(accounts, codes, nil, auth.DefaultPolicy(), nil, auth.RecoveryConfig{})
	assert.ErrorContains(t, err, "password hasher is required")
	_, err = auth.NewRecoveryService(accounts, codes, hasher, auth.DefaultPolicy(), nil, auth.RecoveryConfig{CodeTTL: -time.Second, CodeKey: testCodeKey})
	errutil.AssertErrorCode(t, err, "RECOVERY_CONFIG_INVALID")
	_, err = auth.NewRecoveryService(accounts, codes, hasher, auth.DefaultPolicy(), nil, auth.RecoveryConfig{})
	errutil.AssertErrorCode(t, err, "RECOVERY_CONFIG_INVALID")
}

func TestRecoveryService_RequestCode(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces codes and sends the code", func(t *testing.T) {
		channel := &captureChannel{}
		notifier := auth.NewNotifier(channel, time.Second, slog.New(slog.DiscardHandler))
		f := newRecoveryFixture(t, notifier)
		account := mustAccount(t, "ada@example.com", "h")

		var stored *auth.RecoveryCode
		f.accounts.On("GetByEmail", ctx, "ada@example.com").Return(account, nil)
		f.codes.On("ReplaceForUser", ctx, mock.AnythingOfType("*auth.RecoveryCode")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*auth.RecoveryCode) }).
			Return(int64(1), nil)

		issued, err := f.svc.RequestCode(ctx, "ada@example.com")
		require.NoError(t, err)
		notifier.Wait()

		assert.Equal(t, account.ID, issued.UserID)
		assert.Equal(t, f.clock.Now().Add(15*time.Minute), issued.ExpiresAt)
		require.NotNil(t, stored)
		assert.Equal(t, account.ID, stored.UserID)
		assert.False(t, stored.Used)

		msg, ok := channel.Last(auth.MessageRecoveryCode)
		require.True(t, ok)
		code := msg.Data["code"]
		assert.True(t, auth.ValidCodeShape(code))
		assert.Equal(t, auth.HashRecoveryCode(testCodeKey, code), stored.CodeHash)
		assert.Contains(t, msg.Body, code)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		f.accounts.On("GetByEmail", ctx, "nobody@example.com").Return(nil, auth.ErrNotFound)

		_, err := f.svc.RequestCode(ctx, "nobody@example.com")
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
	})

	t.Run("missing email", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		_, err := f.svc.RequestCode(ctx, " ")
		errutil.AssertErrorCode(t, err, auth.CodeMissingField)
	})

	t.Run("account removed before the code is stored", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		f.accounts.On("GetByEmail", ctx, "ada@example.com").Return(mustAccount(t, "ada@example.com", "h"), nil)
		f.codes.On("ReplaceForUser", ctx, mock.Anything).
			Return(int64(0), oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound))

		_, err := f.svc.RequestCode(ctx, "ada@example.com")
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
		assert.Equal(t, auth.KindNotFound, auth.KindOf(err))
	})

	t.Run("store failure", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		f.accounts.On("GetByEmail", ctx, "ada@example.com").Return(mustAccount(t, "ada@example.com", "h"), nil)
		f.codes.On("ReplaceForUser", ctx, mock.Anything).Return(int64(0), errors.New("deadlock"))

		_, err := f.svc.RequestCode(ctx, "ada@example.com")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})

	t.Run("delivery failure is not fatal", func(t *testing.T) {
		channel := &captureChannel{err: errors.New("smtp down")}
		notifier := auth.NewNotifier(channel, time.Second, slog.New(slog.DiscardHandler))
		f := newRecoveryFixture(t, notifier)
		f.accounts.On("GetByEmail", ctx, "ada@example.com").Return(mustAccount(t, "ada@example.com", "h"), nil)
		f.codes.On("ReplaceForUser", ctx, mock.Anything).Return(int64(0), nil)

		_, err := f.svc.RequestCode(ctx, "ada@example.com")
		require.NoError(t, err)
		notifier.Wait()
	})
}

func TestRecoveryService_VerifyCode(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	t.Run("marks the code used", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		row := &auth.RecoveryCode{ID: ulid.Make(), UserID: userID, Used: true, ExpiresAt: f.clock.Now().Add(time.Minute)}
		f.codes.On("MarkUsed", ctx, userID, auth.HashRecoveryCode(testCodeKey, "012345"), f.clock.Now()).Return(row, nil)

		verified, err := f.svc.VerifyCode(ctx, userID.String(), "012345")
		require.NoError(t, err)
		assert.Equal(t, row.ID, verified.ResetID)
	})

	t.Run("malformed code never reaches the store", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		for _, code := range []string{"", "12345", "1234567", "12a456"} {
			_, err := f.svc.VerifyCode(ctx, userID.String(), code)
			errutil.AssertErrorCode(t, err, auth.CodeRecoveryCodeMalformed)
		}
	})

	t.Run("bad user id is an invalid code", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		_, err := f.svc.VerifyCode(ctx, "7", "123456")
		errutil.AssertErrorCode(t, err, auth.CodeRecoveryCodeInvalid)
	})

	t.Run("no match is an invalid code", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		f.codes.On("MarkUsed", ctx, userID, mock.Anything, mock.Anything).Return(nil, auth.ErrNotFound)

		_, err := f.svc.VerifyCode(ctx, userID.String(), "123456")
		errutil.AssertErrorCode(t, err, auth.CodeRecoveryCodeInvalid)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		f.codes.On("MarkUsed", ctx, userID, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		_, err := f.svc.VerifyCode(ctx, userID.String(), "123456")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}

func TestRecoveryService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the password once redeemed", func(t *testing.T) {
		channel := &captureChannel{}
		notifier := auth.NewNotifier(channel, time.Second, slog.New(slog.DiscardHandler))
		f := newRecoveryFixture(t, notifier)
		account := mustAccount(t, "ada@example.com", "old")
		row := &auth.RecoveryCode{ID: ulid.Make(), UserID: account.ID, Used: true}

		f.hasher.On("Hash", "newpass1").Return("new-hash", nil)
		f.codes.On("Redeem", ctx, row.ID, f.clock.Now()).Return(row, nil)
		f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
		f.accounts.On("UpdatePassword", ctx, account.ID, auth.CredentialPatch{PasswordHash: "new-hash"}).Return(nil)

		require.NoError(t, f.svc.ResetPassword(ctx, row.ID.String(), "newpass1"))
		notifier.Wait()

		_, ok := channel.Last(auth.MessagePasswordChanged)
		assert.True(t, ok)
	})

	t.Run("weak password does not consume the reset id", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		err := f.svc.ResetPassword(ctx, ulid.Make().String(), "short")
		errutil.AssertErrorCode(t, err, auth.CodePasswordTooWeak)
		f.codes.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown or replayed reset id", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		id := ulid.Make()
		f.hasher.On("Hash", "newpass1").Return("new-hash", nil)
		f.codes.On("Redeem", ctx, id, mock.Anything).Return(nil, auth.ErrNotFound)

		err := f.svc.ResetPassword(ctx, id.String(), "newpass1")
		errutil.AssertErrorCode(t, err, auth.CodeResetInvalid)
	})

	t.Run("unparsable reset id", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		err := f.svc.ResetPassword(ctx, "not-an-id", "newpass1")
		errutil.AssertErrorCode(t, err, auth.CodeResetInvalid)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		errutil.AssertErrorCode(t, f.svc.ResetPassword(ctx, "", "newpass1"), auth.CodeMissingField)
		errutil.AssertErrorCode(t, f.svc.ResetPassword(ctx, ulid.Make().String(), ""), auth.CodeMissingField)
	})

	t.Run("owner vanished", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		row := &auth.RecoveryCode{ID: ulid.Make(), UserID: ulid.Make(), Used: true}
		f.hasher.On("Hash", "newpass1").Return("new-hash", nil)
		f.codes.On("Redeem", ctx, row.ID, mock.Anything).Return(row, nil)
		f.accounts.On("GetByID", ctx, row.UserID).Return(nil, auth.ErrNotFound)

		err := f.svc.ResetPassword(ctx, row.ID.String(), "newpass1")
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
	})

	t.Run("update failure is internal", func(t *testing.T) {
		f := newRecoveryFixture(t, nil)
		account := mustAccount(t, "ada@example.com", "old")
		row := &auth.RecoveryCode{ID: ulid.Make(), UserID: account.ID, Used: true}
		f.hasher.On("Hash", "newpass1").Return("new-hash", nil)
		f.codes.On("Redeem", ctx, row.ID, mock.Anything).Return(row, nil)
		f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
		f.accounts.On("UpdatePassword", ctx, account.ID, mock.Anything).Return(errors.New("disk full"))

		err := f.svc.ResetPassword(ctx, row.ID.String(), "newpass1")
		require.Error(t, err)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}

func TestRecoveryService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newRecoveryFixture(t, nil)
	f.codes.On("PurgeExpired", ctx, f.clock.Now()).Return(int64(3), nil)

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
