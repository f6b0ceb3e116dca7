package repofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/bomani-client/sessions"
)

var _ sessions.Store = (*FakeStore)(nil)

// FakeStore is an in-memory sessions.Store. It also records write counts so tests can
// assert that nothing was persisted.
type FakeStore struct {
	values map[string]string
	sets   int
	lock   sync.RWMutex

	// SetErr, when non-nil, is returned by Set for the named key
	SetErr map[string]error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
		SetErr: make(map[string]error),
	}
}

func (fs *FakeStore) Get(_ context.Context, key string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	v, ok := fs.values[key]
	if !ok {
		return "", sessions.ErrNotFound
	}
	return v, nil
}

func (fs *FakeStore) Set(_ context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.SetErr[key]; err != nil {
		return err
	}
	fs.values[key] = value
	fs.sets++
	return nil
}

func (fs *FakeStore) Delete(_ context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	for _, k := range keys {
		delete(fs.values, k)
	}
	return nil
}

// Len returns the number of stored keys
func (fs *FakeStore) Len() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return len(fs.values)
}

// Sets returns how many successful writes the store has seen
func (fs *FakeStore) Sets() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.sets
}
