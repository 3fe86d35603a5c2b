package auth

import (
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

// Phase is the single observable stage of the login flow.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseLoading
	PhaseAwaitingTwoFactor
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAwaitingTwoFactor:
		return "awaiting_two_factor"
	case PhaseAuthenticated:
		return "authenticated"
	}
	return "unauthenticated"
}

// State is a snapshot of the authentication state. At most one of SessionID
// and TempSessionID is set.
type State struct {
	User            *users.User
	SessionID       string
	TempSessionID   string
	Requires2FA     bool
	IsAuthenticated bool
	IsLoading       bool
	Error           string         // user facing message of the last failure
	ErrorKind       apperrors.Kind // "" when Error is empty

	TwoFactorSecondsLeft int    // countdown of the pending challenge
	Version              uint64 // incremented on every change
}

// Phase resolves overlapping flags: loading, then a pending challenge, then a
// session.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.Requires2FA && s.TempSessionID != "":
		return PhaseAwaitingTwoFactor
	case s.IsAuthenticated && s.SessionID != "":
		return PhaseAuthenticated
	}
	return PhaseUnauthenticated
}

func (s State) snapshot() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (s *State) setError(err *apperrors.Error) {
	if err == nil {
		s.Error, s.ErrorKind = "", ""
		return
	}
	s.Error, s.ErrorKind = err.Message, err.Kind
}

// reset returns to the unauthenticated shape, keeping the version.
func (s *State) reset() {
	*s = State{Version: s.Version}
}

func (s *State) authenticate(sessionID string, user *users.User) {
	s.reset()
	s.SessionID = sessionID
	s.User = user
	s.IsAuthenticated = true
}

func (s *State) challenge(tempSessionID string, seconds int) {
	s.reset()
	s.TempSessionID = tempSessionID
	s.Requires2FA = true
	s.TwoFactorSecondsLeft = seconds
}
