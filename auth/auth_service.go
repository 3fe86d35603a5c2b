// Package auth is the authentication state machine: it drives login, the
// two-factor challenge and logout against the Identity Service, keeps the
// client store in step and publishes state snapshots to the presentation layer.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/countdown"
	"github.com/jrsteele09/go-auth-session/identity"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IdentityClient is the Identity Service surface the state machine drives.
type IdentityClient interface {
	Login(ctx context.Context, req identity.LoginRequest) (*identity.LoginResponse, error)
	Verify2FA(ctx context.Context, req identity.Verify2FARequest) (*identity.Verify2FAResponse, error)
	Logout(ctx context.Context, sessionID string) (*identity.LogoutResponse, error)
}

// SessionStore is the durable side of the state.
type SessionStore interface {
	Session(ctx context.Context) *sessions.Session
	SaveSession(ctx context.Context, session *sessions.Session) error
	TempSessionID(ctx context.Context) string
	SaveTempSession(ctx context.Context, tempSessionID string) error
	ClearTempSession(ctx context.Context) error
	Clear(ctx context.Context) error
}

// SessionEvents reports sessions the transport layer found to be revoked.
type SessionEvents interface {
	OnSessionLost(fn func()) (unsubscribe func())
}

// Dependencies holds the collaborators of the AuthenticationService.
type Dependencies struct {
	Identity  IdentityClient
	Store     SessionStore
	Validator transport.SessionValidator
	Events    SessionEvents // optional
}

// LoginInput is what the user submits on the login form.
type LoginInput struct {
	Identifier string // username or email
	Password   string
	RememberMe bool
	DeviceName string
}

// LoginResult tells the caller which way a successful Login went.
type LoginResult struct {
	Success       bool
	Requires2FA   bool
	TempSessionID string
	ExpiresIn     int // seconds the challenge stays open
	User          *users.User
	Message       string
}

// DefaultRestoreTimeout bounds session validation during Initialize.
const DefaultRestoreTimeout = 15 * time.Second

// AuthenticationService is one instance of the state machine. It is safe for
// concurrent use; racing actions resolve last-write-wins.
type AuthenticationService struct {
	deps           Dependencies
	deviceName     string
	twoFactorTick  time.Duration
	tempSessionTTL time.Duration
	restoreTimeout time.Duration
	nowTime        func() time.Time
	logger         zerolog.Logger

	initOnce sync.Once

	// commitMu serializes store writes with the state change they belong to.
	commitMu   sync.Mutex
	timer      *countdown.Timer
	identifier string // identifier of the pending challenge

	mu    sync.Mutex
	state State

	notifyMu     sync.Mutex
	subscribers  map[int]func(State)
	nextSubID    int
	unsubscribed func()
}

type AuthenticationServiceOption func(*AuthenticationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthenticationServiceOption {
	return func(s *AuthenticationService) {
		s.nowTime = nowFunc
	}
}

// WithTwoFactorTick sets how long one countdown second lasts (primarily for testing)
func WithTwoFactorTick(d time.Duration) AuthenticationServiceOption {
	return func(s *AuthenticationService) {
		s.twoFactorTick = d
	}
}

// WithTempSessionTTL is the challenge lifetime assumed when the service does
// not declare expires_in.
func WithTempSessionTTL(d time.Duration) AuthenticationServiceOption {
	return func(s *AuthenticationService) {
		s.tempSessionTTL = d
	}
}

// WithRestoreTimeout bounds the validation Initialize runs on the stored session.
func WithRestoreTimeout(d time.Duration) AuthenticationServiceOption {
	return func(s *AuthenticationService) {
		s.restoreTimeout = d
	}
}

// WithDeviceName is sent on login when the input does not name a device.
func WithDeviceName(name string) AuthenticationServiceOption {
	return func(s *AuthenticationService) {
		s.deviceName = name
	}
}

func WithLogger(l zerolog.Logger) AuthenticationServiceOption {
	return func(s *AuthenticationService) {
		s.logger = l
	}
}

// NewAuthenticationService builds a service in the Loading phase. Call
// Initialize to restore a stored session; actions call it implicitly.
func NewAuthenticationService(deps Dependencies, options ...AuthenticationServiceOption) (*AuthenticationService, error) {
	if deps.Identity == nil {
		return nil, MissingIdentityClientErr
	}
	if deps.Store == nil {
		return nil, MissingStoreErr
	}
	if deps.Validator == nil {
		return nil, MissingValidatorErr
	}

	s := &AuthenticationService{
		deps:           deps,
		twoFactorTick:  countdown.DefaultTick,
		tempSessionTTL: sessions.DefaultTempSessionTTL,
		restoreTimeout: DefaultRestoreTimeout,
		nowTime:        time.Now,
		logger:         log.Logger,
		state:          State{IsLoading: true},
		subscribers:    make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(s)
	}

	if deps.Events != nil {
		s.unsubscribed = deps.Events.OnSessionLost(s.handleSessionLost)
	}
	return s, nil
}

// Close stops the countdown and detaches from session events.
func (s *AuthenticationService) Close() {
	s.commitMu.Lock()
	s.stopTimer()
	s.commitMu.Unlock()
	if s.unsubscribed != nil {
		s.unsubscribed()
	}
}

// Initialize restores the stored session if the Identity Service still
// accepts it, and otherwise clears the store. It runs once per instance;
// concurrent and later callers wait for the first run. The run ignores the
// cancellation of ctx and is bounded by the restore timeout instead.
func (s *AuthenticationService) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.restoreTimeout)
		defer cancel()
		s.restore(ctx)
	})
}

func (s *AuthenticationService) restore(ctx context.Context) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	// a challenge from a previous process cannot be resumed
	if s.deps.Store.TempSessionID(ctx) != "" {
		if err := s.deps.Store.ClearTempSession(ctx); err != nil {
			s.logger.Err(err).Msg("clearing stale temporary session")
		}
	}

	stored := s.deps.Store.Session(ctx)
	if stored.Valid() && s.deps.Validator.Validate(ctx, stored.ID) {
		s.logger.Info().Str("session", utils.ShortID(stored.ID)).Int("user_id", stored.User.ID).Msg("restored session")
		s.update(func(st *State) {
			st.authenticate(stored.ID, stored.User)
		})
		return
	}

	if stored != nil {
		s.logger.Info().Str("session", utils.ShortID(stored.ID)).Msg("stored session no longer valid")
	}
	if err := s.deps.Store.Clear(ctx); err != nil {
		s.logger.Err(err).Msg("clearing client store")
	}
	s.update(func(st *State) {
		st.reset()
	})
}

// Login submits credentials. On success the state is Authenticated, or
// AwaitingTwoFactor with the countdown running when the service asks for a
// second factor. Failures are recorded in State.Error and returned.
func (s *AuthenticationService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	s.Initialize(ctx)
	s.update(func(st *State) {
		st.IsLoading = true
		st.setError(nil)
	})

	deviceName := in.DeviceName
	if deviceName == "" {
		deviceName = s.deviceName
	}
	resp, err := s.deps.Identity.Login(ctx, identity.LoginRequest{
		Identifier: strings.TrimSpace(in.Identifier),
		Password:   in.Password,
		RememberMe: in.RememberMe,
		DeviceName: deviceName,
	})
	if err != nil {
		return LoginResult{}, s.fail(err)
	}

	if resp.Requires2FA {
		if resp.TempSessionID == "" {
			return LoginResult{}, s.fail(apperrors.New(apperrors.KindService, ""))
		}
		expiresIn := resp.ExpiresIn
		if expiresIn <= 0 {
			expiresIn = int(s.tempSessionTTL / time.Second)
		}
		temp := sessions.NewTempSession(resp.TempSessionID, expiresIn, s.nowTime())
		s.beginChallenge(ctx, temp, strings.TrimSpace(in.Identifier))
		return LoginResult{
			Requires2FA:   true,
			TempSessionID: temp.ID,
			ExpiresIn:     temp.Seconds(),
			Message:       resp.Message,
		}, nil
	}

	user, err := users.FromAuthentication(resp.UserID, resp.UserType, in.Identifier)
	if err != nil || resp.SessionID == "" {
		e := apperrors.New(apperrors.KindService, "")
		e.Internal = apperrors.Wrapf(err, "[AuthenticationService.Login] incomplete login response")
		return LoginResult{}, s.fail(e)
	}
	if err := s.completeLogin(ctx, &sessions.Session{ID: resp.SessionID, User: user}); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Success: true, User: user, Message: resp.Message}, nil
}

// Verify2FA answers the pending challenge. Without one it fails locally with
// NoTempSession. Any rejection, including the service reporting the challenge
// expired, keeps the challenge open; only the countdown or CancelTwoFactor
// ends it.
func (s *AuthenticationService) Verify2FA(ctx context.Context, code string) error {
	s.Initialize(ctx)

	current := s.State()
	if !current.Requires2FA || current.TempSessionID == "" {
		err := apperrors.NoTempSession()
		s.update(func(st *State) {
			st.setError(err)
		})
		return err
	}
	tempID := current.TempSessionID

	s.update(func(st *State) {
		st.IsLoading = true
		st.setError(nil)
	})

	resp, err := s.deps.Identity.Verify2FA(ctx, identity.Verify2FARequest{
		TempSessionID: tempID,
		Code:          strings.TrimSpace(code),
	})
	if err != nil {
		return s.fail(err)
	}

	s.commitMu.Lock()
	identifier := s.identifier
	s.commitMu.Unlock()

	user, err := users.FromAuthentication(resp.UserID, resp.UserType, identifier)
	if err != nil || resp.SessionID == "" {
		e := apperrors.New(apperrors.KindService, "")
		e.Internal = apperrors.Wrapf(err, "[AuthenticationService.Verify2FA] incomplete verification response")
		return s.fail(e)
	}
	return s.completeLogin(ctx, &sessions.Session{ID: resp.SessionID, User: user})
}

// Logout ends the session on the service if it can, then always clears the
// store and the state. The returned error reports a store failure only.
func (s *AuthenticationService) Logout(ctx context.Context) error {
	s.Initialize(ctx)

	sessionID := s.State().SessionID
	s.update(func(st *State) {
		st.IsLoading = true
	})

	if sessionID != "" {
		if _, err := s.deps.Identity.Logout(ctx, sessionID); err != nil {
			s.logger.Warn().Err(err).Str("session", utils.ShortID(sessionID)).Msg("identity service logout failed, clearing local session anyway")
		}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.stopTimer()
	err := s.deps.Store.Clear(ctx)
	if err != nil {
		s.logger.Err(err).Msg("clearing client store on logout")
	}
	s.update(func(st *State) {
		st.reset()
	})
	return err
}

// CancelTwoFactor abandons the pending challenge and returns to the login form.
func (s *AuthenticationService) CancelTwoFactor(ctx context.Context) {
	s.Initialize(ctx)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.stopTimer()
	if err := s.deps.Store.ClearTempSession(ctx); err != nil {
		s.logger.Err(err).Msg("clearing temporary session")
	}
	s.update(func(st *State) {
		if st.Requires2FA {
			st.reset()
		}
	})
}

func (s *AuthenticationService) ClearError() {
	s.update(func(st *State) {
		st.setError(nil)
	})
}

// State returns a copy of the current state.
func (s *AuthenticationService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.snapshot()
}

// Subscribe calls fn with a snapshot after every change. fn runs on the
// goroutine that made the change and must not call back into the service's
// actions. The returned func unsubscribes.
func (s *AuthenticationService) Subscribe(fn func(State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *AuthenticationService) IsInternalUser() bool {
	st := s.State()
	return st.IsAuthenticated && st.User.IsInternal()
}

func (s *AuthenticationService) IsInstitutionalUser() bool {
	st := s.State()
	return st.IsAuthenticated && st.User.IsInstitutional()
}

func (s *AuthenticationService) CanAccessDashboard() bool {
	st := s.State()
	return st.IsAuthenticated && st.User != nil && st.User.CanAccessDashboard
}

// update applies fn, bumps the version and notifies subscribers in order.
func (s *AuthenticationService) update(fn func(*State)) State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	snap := s.state.snapshot()
	s.mu.Unlock()

	for _, sub := range s.subscribers {
		sub(snap)
	}
	return snap
}

// fail records err in the state, ends loading and returns err normalized.
func (s *AuthenticationService) fail(err error) *apperrors.Error {
	e := apperrors.Normalize(err)
	if e.Internal != nil {
		s.logger.Debug().Err(e.Internal).Str("kind", string(e.Kind)).Msg("authentication action failed")
	}
	s.update(func(st *State) {
		st.IsLoading = false
		st.setError(e)
	})
	return e
}

// completeLogin records session in the store and the state. The transport
// reads its credential from the store, so a session that cannot be stored is
// revoked on the service and the action fails.
func (s *AuthenticationService) completeLogin(ctx context.Context, session *sessions.Session) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.stopTimer()
	s.identifier = ""
	if err := s.deps.Store.SaveSession(ctx, session); err != nil {
		s.logger.Err(err).Str("session", utils.ShortID(session.ID)).Msg("persisting session, ending it")
		detached := context.WithoutCancel(ctx)
		if _, logoutErr := s.deps.Identity.Logout(detached, session.ID); logoutErr != nil {
			s.logger.Debug().Err(logoutErr).Msg("revoking unsaved session")
		}
		if clearErr := s.deps.Store.Clear(detached); clearErr != nil {
			s.logger.Err(clearErr).Msg("clearing client store")
		}
		e := apperrors.New(apperrors.KindService, "")
		e.Internal = apperrors.Wrapf(err, "[AuthenticationService.completeLogin] persisting session")
		s.update(func(st *State) {
			st.reset()
			st.setError(e)
		})
		return e
	}
	s.logger.Info().Str("session", utils.ShortID(session.ID)).Int("user_id", session.User.ID).Msg("authenticated")
	s.update(func(st *State) {
		st.authenticate(session.ID, session.User)
	})
	return nil
}

func (s *AuthenticationService) beginChallenge(ctx context.Context, temp *sessions.TempSession, identifier string) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.deps.Store.SaveTempSession(ctx, temp.ID); err != nil {
		s.logger.Err(err).Msg("persisting temporary session")
	}
	s.stopTimer()
	s.identifier = identifier

	tempID := temp.ID
	s.timer = countdown.New(
		func() { s.expireChallenge(tempID) },
		countdown.WithTick(s.twoFactorTick),
		countdown.WithOnTick(func(remaining int) {
			s.update(func(st *State) {
				if st.TempSessionID == tempID {
					st.TwoFactorSecondsLeft = remaining
				}
			})
		}),
	)
	s.update(func(st *State) {
		st.challenge(tempID, temp.Seconds())
	})
	s.timer.Start(temp.Seconds())
}

// expireChallenge ends tempID if it is still the pending challenge.
func (s *AuthenticationService) expireChallenge(tempID string) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if s.State().TempSessionID != tempID {
		return
	}
	s.logger.Info().Str("temp_session", utils.ShortID(tempID)).Msg("two-factor challenge expired")
	s.stopTimer()
	s.identifier = ""
	if err := s.deps.Store.ClearTempSession(context.Background()); err != nil {
		s.logger.Err(err).Msg("clearing expired temporary session")
	}
	s.update(func(st *State) {
		st.reset()
		st.setError(apperrors.TempSessionExpired())
	})
}

// handleSessionLost logs out a state that holds a session. Without one there
// is nothing to lose, and a pending challenge stays open.
func (s *AuthenticationService) handleSessionLost() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if !s.State().IsAuthenticated {
		s.logger.Debug().Msg("session loss reported while not authenticated")
		return
	}
	s.stopTimer()
	if err := s.deps.Store.Clear(context.Background()); err != nil {
		s.logger.Err(err).Msg("clearing client store after session loss")
	}
	s.logger.Info().Msg("session revoked by identity service")
	s.update(func(st *State) {
		st.reset()
		st.setError(apperrors.Unauthenticated(nil))
	})
}

// stopTimer requires commitMu.
func (s *AuthenticationService) stopTimer() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
}
