// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/eventhub/eventauth/internal/auth"
)

// AccountRepository stores accounts in memory.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
}

var _ auth.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates an empty AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create implements auth.AccountRepository.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[account.Email]; taken {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("email", account.Email).Wrap(auth.ErrEmailTaken)
	}
	stored := *account
	r.byID[account.ID] = &stored
	r.byEmail[account.Email] = account.ID
	return nil
}

// GetByID implements auth.AccountRepository.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := *a
	return &out, nil
}

// GetByEmail implements auth.AccountRepository.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	out := *r.byID[id]
	return &out, nil
}

// UpdatePassword implements auth.AccountRepository.
func (r *AccountRepository) UpdatePassword(_ context.Context, id ulid.ULID, patch auth.CredentialPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	a.PasswordHash = patch.PasswordHash
	return nil
}
