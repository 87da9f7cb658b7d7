// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package mocks

import (
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/eventhub/eventauth/internal/auth"
)

// MockTokenIssuer is a mock type for auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a MockTokenIssuer whose expectations are
// asserted when the test ends.
func NewMockTokenIssuer(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Issue provides a mock function.
func (m *MockTokenIssuer) Issue(userID ulid.ULID, role auth.Role) (*auth.IssuedToken, error) {
	ret := m.Called(userID, role)
	var tok *auth.IssuedToken
	if v := ret.Get(0); v != nil {
		tok = v.(*auth.IssuedToken)
	}
	return tok, ret.Error(1)
}

// Verify provides a mock function.
func (m *MockTokenIssuer) Verify(token string) (*auth.Principal, error) {
	ret := m.Called(token)
	var p *auth.Principal
	if v := ret.Get(0); v != nil {
		p = v.(*auth.Principal)
	}
	return p, ret.Error(1)
}
