// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventauth/internal/auth"
)

// fastHasher keeps argon2id cheap in tests.
func fastHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    1,
		Memory:  64,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	})
}

var testCodeKey = []byte("recovery-code-test-key")

func testSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

// fakeClock is a settable clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func mustAccount(t *testing.T, email, hash string) *auth.Account {
	t.Helper()
	a, err := auth.NewAccount("Ada", "Lovelace", email, hash, auth.RoleParticipant, time.Now())
	require.NoError(t, err)
	return a
}
