package loginsession

import (
	"fmt"
	"sync"
	"time"
)

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo
type InMemoryLoginSessionRepo struct {
	mu         sync.RWMutex
	challenges map[string]Challenge
}

func NewInMemoryLoginSessionRepo() *InMemoryLoginSessionRepo {
	return &InMemoryLoginSessionRepo{
		challenges: make(map[string]Challenge),
	}
}

// Upsert creates or replaces a challenge
func (r *InMemoryLoginSessionRepo) Upsert(challenge Challenge) error {
	if challenge.ID == "" {
		return fmt.Errorf("challenge id is required")
	}
	if challenge.UserID <= 0 {
		return fmt.Errorf("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[challenge.ID] = challenge
	return nil
}

func (r *InMemoryLoginSessionRepo) Get(id string) (Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	challenge, ok := r.challenges[id]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return challenge, nil
}

// Delete removes a challenge. Deleting a missing one is not an error.
func (r *InMemoryLoginSessionRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, id)
	return nil
}

func (r *InMemoryLoginSessionRepo) DeleteExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, challenge := range r.challenges {
		if challenge.Expired(now) {
			delete(r.challenges, id)
			removed++
		}
	}
	return removed
}
