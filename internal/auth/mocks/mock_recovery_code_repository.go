// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/eventhub/eventauth/internal/auth"
)

// MockRecoveryCodeRepository is a mock type for auth.RecoveryCodeRepository.
type MockRecoveryCodeRepository struct {
	mock.Mock
}

// NewMockRecoveryCodeRepository creates a MockRecoveryCodeRepository whose
// expectations are asserted when the test ends.
func NewMockRecoveryCodeRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockRecoveryCodeRepository {
	m := &MockRecoveryCodeRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// ReplaceForUser provides a mock function.
func (m *MockRecoveryCodeRepository) ReplaceForUser(ctx context.Context, code *auth.RecoveryCode) (int64, error) {
	ret := m.Called(ctx, code)
	return ret.Get(0).(int64), ret.Error(1)
}

// MarkUsed provides a mock function.
func (m *MockRecoveryCodeRepository) MarkUsed(ctx context.Context, userID ulid.ULID, codeHash string, now time.Time) (*auth.RecoveryCode, error) {
	ret := m.Called(ctx, userID, codeHash, now)
	return codeOrNil(ret.Get(0)), ret.Error(1)
}

// Redeem provides a mock function.
func (m *MockRecoveryCodeRepository) Redeem(ctx context.Context, id ulid.ULID, now time.Time) (*auth.RecoveryCode, error) {
	ret := m.Called(ctx, id, now)
	return codeOrNil(ret.Get(0)), ret.Error(1)
}

// PurgeExpired provides a mock function.
func (m *MockRecoveryCodeRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ret := m.Called(ctx, now)
	return ret.Get(0).(int64), ret.Error(1)
}

func codeOrNil(v any) *auth.RecoveryCode {
	if v == nil {
		return nil
	}
	return v.(*auth.RecoveryCode)
}
