// Package loginsession holds logins paused on a second factor. The id of a
// Challenge is the temp_session_id handed to the client.
package loginsession

import (
	"errors"
	"time"

	"github.com/jrsteele09/go-auth-session/users"
)

var ErrNotFound = errors.New("login session not found")

type Challenge struct {
	ID         string
	UserID     int
	UserType   users.UserType
	RememberMe bool
	DeviceName string

	// Wrong codes submitted so far
	Attempts int

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge can no longer be completed at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ExpiresIn is the whole number of seconds left at now, never negative.
func (c Challenge) ExpiresIn(now time.Time) int {
	left := c.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left.Round(time.Second) / time.Second)
}

type Repo interface {
	Upsert(challenge Challenge) error
	Get(id string) (Challenge, error)
	Delete(id string) error
	DeleteExpired(now time.Time) int
}
