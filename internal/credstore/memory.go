package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a MemoryStore pre-populated with cred, which may be nil.
func NewMemoryStore(cred *Credential) *MemoryStore {
	m := &MemoryStore{}
	if cred != nil {
		m.cred = clone(cred)
	}
	return m
}

// Load returns a copy of the held credential, or nil if none is held.
func (m *MemoryStore) Load(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	return clone(m.cred), nil
}

// Save replaces the held credential with a copy of cred.
func (m *MemoryStore) Save(ctx context.Context, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = clone(cred)
	return nil
}

// Clear drops the held credential. It always succeeds.
func (m *MemoryStore) Clear(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return true
}

func clone(c *Credential) *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.User != nil {
		u := *c.User
		if c.User.ID != nil {
			id := *c.User.ID
			u.ID = &id
		}
		out.User = &u
	}
	return &out
}
