// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/eventhub/eventauth/internal/auth"
)

// MockAccountRepository is a mock type for auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a MockAccountRepository whose expectations
// are asserted when the test ends.
func NewMockAccountRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	ret := m.Called(ctx, account)
	return ret.Error(0)
}

// GetByID provides a mock function.
func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	ret := m.Called(ctx, id)
	var a *auth.Account
	if v := ret.Get(0); v != nil {
		a = v.(*auth.Account)
	}
	return a, ret.Error(1)
}

// GetByEmail provides a mock function.
func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	ret := m.Called(ctx, email)
	var a *auth.Account
	if v := ret.Get(0); v != nil {
		a = v.(*auth.Account)
	}
	return a, ret.Error(1)
}

// UpdatePassword provides a mock function.
func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, patch auth.CredentialPatch) error {
	ret := m.Called(ctx, id, patch)
	return ret.Error(0)
}
