package sessions

import (
	"time"

	"github.com/jrsteele09/go-auth-session/users"
)

// DefaultTempSessionTTL is the challenge lifetime when the service does not declare one.
const DefaultTempSessionTTL = 600 * time.Second

// Session is an authenticated login. ID is the opaque bearer credential sent
// on every request.
type Session struct {
	ID   string
	User *users.User
}

// Valid reports whether the session has both halves needed to be restored.
func (s *Session) Valid() bool {
	return s != nil && s.ID != "" && s.User != nil
}

// TempSession scopes a pending two-factor challenge. It never coexists with a Session.
type TempSession struct {
	ID        string
	ExpiresIn time.Duration
	CreatedAt time.Time
}

// NewTempSession builds a challenge from the server declared lifetime in
// seconds; a non-positive value selects DefaultTempSessionTTL.
func NewTempSession(id string, expiresInSeconds int, now time.Time) *TempSession {
	ttl := time.Duration(expiresInSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultTempSessionTTL
	}
	return &TempSession{ID: id, ExpiresIn: ttl, CreatedAt: now}
}

// ExpiresAt is when the server will stop accepting the challenge.
func (t *TempSession) ExpiresAt() time.Time {
	return t.CreatedAt.Add(t.ExpiresIn)
}

// Seconds is the countdown length in whole seconds.
func (t *TempSession) Seconds() int {
	return int(t.ExpiresIn / time.Second)
}
