package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/bomani-client/sessions"
)

var _ sessions.Store = (*InMemoryStore)(nil)

// InMemoryStore is a process-local sessions.Store. Tokens are kept per profile and are
// lost when the process exits.
type InMemoryStore struct {
	mu       *sync.RWMutex
	profile  string
	profiles map[string]map[string]string // profile -> key -> value
}

// NewInMemoryStore creates a store scoped to profile. Stores created with Share see the
// same underlying map under another profile.
func NewInMemoryStore(profile string) *InMemoryStore {
	if profile == "" {
		profile = "default"
	}
	return &InMemoryStore{
		mu:       &sync.RWMutex{},
		profile:  profile,
		profiles: make(map[string]map[string]string),
	}
}

// Share returns a view of the same backing map scoped to another profile
func (r *InMemoryStore) Share(profile string) *InMemoryStore {
	return &InMemoryStore{mu: r.mu, profile: profile, profiles: r.profiles}
}

// Get retrieves a token by key
func (r *InMemoryStore) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.profiles[r.profile][key]
	if !ok {
		return "", sessions.ErrNotFound
	}
	return value, nil
}

// Set creates or replaces a token
func (r *InMemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[r.profile]; !ok {
		r.profiles[r.profile] = make(map[string]string)
	}
	r.profiles[r.profile][key] = value
	return nil
}

// Delete removes keys. Absent keys are not an error.
func (r *InMemoryStore) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, ok := r.profiles[r.profile]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(values, k)
	}

	// Clean up empty profile map
	if len(values) == 0 {
		delete(r.profiles, r.profile)
	}
	return nil
}
