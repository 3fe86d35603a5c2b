package fakestorerepo

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-session/store"
)

var _ store.Repo = (*FakeStoreRepo)(nil)

// ErrInjected is returned by every operation after Fail is called.
var ErrInjected = errors.New("injected store failure")

// FakeStoreRepo is an in-memory Repo that records writes and can be switched
// into a failing mode.
type FakeStoreRepo struct {
	values  map[string]string
	writes  []string
	failing bool
	lock    sync.RWMutex
}

func NewFakeStoreRepo() *FakeStoreRepo {
	return &FakeStoreRepo{values: make(map[string]string)}
}

// Seed sets values without recording writes.
func (r *FakeStoreRepo) Seed(values map[string]string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for k, v := range values {
		r.values[k] = v
	}
}

func (r *FakeStoreRepo) Fail(failing bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failing = failing
}

// Snapshot copies the current contents.
func (r *FakeStoreRepo) Snapshot() map[string]string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Writes lists "set:<key>" and "del:<key>" operations in order.
func (r *FakeStoreRepo) Writes() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]string(nil), r.writes...)
}

func (r *FakeStoreRepo) Get(_ context.Context, key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.failing {
		return "", ErrInjected
	}
	v, ok := r.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (r *FakeStoreRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.failing {
		return ErrInjected
	}
	r.values[key] = value
	r.writes = append(r.writes, "set:"+key)
	return nil
}

func (r *FakeStoreRepo) Delete(_ context.Context, keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.failing {
		return ErrInjected
	}
	for _, k := range keys {
		delete(r.values, k)
		r.writes = append(r.writes, "del:"+k)
	}
	return nil
}
