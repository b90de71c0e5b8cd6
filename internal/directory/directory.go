// Package directory resolves user and listing references against the
// marketplace's account and listing services. Settlement only needs
// existence checks; the directories are read-only collaborators.
package directory

import (
	"context"
	"sync"
)

// Resolver confirms that user and listing identifiers exist.
type Resolver interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	ListingExists(ctx context.Context, listingID string) (bool, error)
}

// MemoryResolver is an in-memory resolver for demo/development mode and
// tests.
type MemoryResolver struct {
	// AllowAll accepts every identifier without registration (dev mode).
	AllowAll bool

	mu       sync.RWMutex
	users    map[string]struct{}
	listings map[string]struct{}
}

// NewMemoryResolver creates an empty in-memory resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		users:    make(map[string]struct{}),
		listings: make(map[string]struct{}),
	}
}

// AddUser registers a user ID.
func (m *MemoryResolver) AddUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = struct{}{}
}

// AddListing registers a listing ID.
func (m *MemoryResolver) AddListing(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[id] = struct{}{}
}

func (m *MemoryResolver) UserExists(ctx context.Context, userID string) (bool, error) {
	if m.AllowAll {
		return true, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *MemoryResolver) ListingExists(ctx context.Context, listingID string) (bool, error) {
	if m.AllowAll {
		return true, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.listings[listingID]
	return ok, nil
}

// Compile-time assertion that MemoryResolver implements Resolver.
var _ Resolver = (*MemoryResolver)(nil)
