package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byEmail  map[string]string
}

// NewMemoryRepository builds an in-memory account store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account), byEmail: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[account.Email]; exists {
		return ErrEmailAlreadyExists
	}
	r.accounts[account.ID] = account
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func (r *memoryRepository) FindByProvider(_ context.Context, provider, subject string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account.Provider == provider && account.ProviderSubject == subject && subject != "" {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *memoryRepository) MarkEmailVerified(_ context.Context, id string) error {
	return r.mutate(id, func(a *Account) { a.EmailVerified = true })
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
	return r.mutate(id, func(a *Account) { a.TokenVersion = version })
}

func (r *memoryRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(a *Account) {
		t := at.UTC()
		a.LastLogin = &t
	})
}

func (r *memoryRepository) mutate(id string, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	fn(&account)
	r.accounts[id] = account
	return nil
}
