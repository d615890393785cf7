package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider is an in-memory Provider for tests and local runs. Error
// fields inject failures; inspection methods expose recorded calls.
type MemoryProvider struct {
	mu       sync.Mutex
	accounts map[string]Account
	groups   map[string][]string
	deleted  []string

	CreateErr error
	DeleteErr error
	GroupErr  error
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]Account),
		groups:   make(map[string][]string),
	}
}

func (p *MemoryProvider) CreateAccount(_ context.Context, input NewAccountInput) (Account, error) {
	if p.CreateErr != nil {
		return Account{}, p.CreateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	username := UsernameFor(input.Email)
	if _, ok := p.accounts[username]; ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, username)
	}
	account := Account{
		ID:       uuid.NewString(),
		Username: username,
		Email:    input.Email,
	}
	p.accounts[username] = account
	return account, nil
}

func (p *MemoryProvider) DeleteAccount(_ context.Context, username string) error {
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.accounts, username)
	p.deleted = append(p.deleted, username)
	return nil
}

func (p *MemoryProvider) AddToGroup(_ context.Context, username, group string) error {
	if p.GroupErr != nil {
		return p.GroupErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.groups[username] = append(p.groups[username], group)
	return nil
}

// Account returns the stored account for username, if any.
func (p *MemoryProvider) Account(username string) (Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[username]
	return account, ok
}

// Deleted returns the usernames passed to DeleteAccount, in order.
func (p *MemoryProvider) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.deleted))
	copy(out, p.deleted)
	return out
}

// GroupsFor returns the groups username has been added to.
func (p *MemoryProvider) GroupsFor(username string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.groups[username]))
	copy(out, p.groups[username])
	return out
}
