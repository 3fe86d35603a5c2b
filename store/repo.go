// Package store is the persistent client store: durable key to string state
// that survives restarts, plus the typed view the coordinator uses over it.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Repo.Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Repo is a durable key to string map. Writes replace the whole value of a
// key; there is no transaction across keys.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
