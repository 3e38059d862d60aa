// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"sync"
	"time"

	"github.com/kiwitrace/kiwitrace/internal/notify"
	"github.com/kiwitrace/kiwitrace/pkg/pointer"
)

// memoryRepository is an in-process [Repository] for service tests.
type memoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*Account
	outbox   []*notify.Message
	err      error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{accounts: make(map[string]*Account)}
}

func (repository *memoryRepository) Create(_ context.Context, account *Account, confirmation *notify.Message) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if repository.err != nil {
		return repository.err
	}
	for _, existing := range repository.accounts {
		if existing.Email == account.Email {
			return ErrDuplicateEmail()
		}
	}

	stored := *account
	repository.accounts[account.ID] = &stored
	repository.outbox = append(repository.outbox, confirmation)
	return nil
}

func (repository *memoryRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	return repository.find(func(account *Account) bool { return account.Email == email })
}

func (repository *memoryRepository) FindByConfirmationHash(_ context.Context, tokenHash string) (*Account, error) {
	return repository.find(func(account *Account) bool { return account.ConfirmationTokenHash == tokenHash })
}

func (repository *memoryRepository) find(match func(*Account) bool) (*Account, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if repository.err != nil {
		return nil, repository.err
	}
	for _, account := range repository.accounts {
		if match(account) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound()
}

func (repository *memoryRepository) FindByPhone(_ context.Context, phone string) ([]*Account, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	var matches []*Account
	for _, account := range repository.accounts {
		if account.Phone != nil && *account.Phone == phone && len(matches) < 2 {
			copied := *account
			matches = append(matches, &copied)
		}
	}
	return matches, nil
}

func (repository *memoryRepository) MarkVerified(_ context.Context, id string, at time.Time) (bool, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, ok := repository.accounts[id]
	if !ok || account.Verified {
		return false, nil
	}
	account.Verified = true
	account.VerifiedAt = &at
	account.UpdatedAt = at
	return true, nil
}

func (repository *memoryRepository) RotateConfirmation(_ context.Context, id, tokenHash string, expiresAt, at time.Time, confirmation *notify.Message) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, ok := repository.accounts[id]
	if !ok || account.Verified {
		return nil
	}
	account.ConfirmationTokenHash = tokenHash
	account.ConfirmationExpiresAt = expiresAt
	account.UpdatedAt = at
	repository.outbox = append(repository.outbox, confirmation)
	return nil
}

func (repository *memoryRepository) UpdateProfile(_ context.Context, email string, changes ProfileChanges, at time.Time) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, account := range repository.accounts {
		if account.Email != email {
			continue
		}
		if changes.GivenName != nil {
			account.GivenName = pointer.NonEmpty(*changes.GivenName)
		}
		if changes.FamilyName != nil {
			account.FamilyName = pointer.NonEmpty(*changes.FamilyName)
		}
		if changes.Phone != nil {
			account.Phone = pointer.NonEmpty(*changes.Phone)
		}
		if changes.CredentialHash != nil {
			account.CredentialHash = *changes.CredentialHash
		}
		account.UpdatedAt = at
		return 1, nil
	}
	return 0, nil
}

func (repository *memoryRepository) UpdateCredential(_ context.Context, id, credentialHash string, at time.Time) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, ok := repository.accounts[id]
	if !ok {
		return ErrAccountNotFound()
	}
	account.CredentialHash = credentialHash
	account.UpdatedAt = at
	return nil
}

func (repository *memoryRepository) count() int {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	return len(repository.accounts)
}
