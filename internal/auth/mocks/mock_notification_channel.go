// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/eventhub/eventauth/internal/auth"
)

// MockNotificationChannel is a mock type for auth.NotificationChannel.
type MockNotificationChannel struct {
	mock.Mock
}

// NewMockNotificationChannel creates a MockNotificationChannel whose
// expectations are asserted when the test ends.
func NewMockNotificationChannel(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockNotificationChannel {
	m := &MockNotificationChannel{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send provides a mock function.
func (m *MockNotificationChannel) Send(ctx context.Context, msg auth.Message) error {
	ret := m.Called(ctx, msg)
	return ret.Error(0)
}
