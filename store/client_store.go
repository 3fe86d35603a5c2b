package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Keys owned by the coordinator. session_id/user and temp_session_id are never
// meaningful at the same time.
const (
	KeySessionID     = "session_id"
	KeyUser          = "user"
	KeyTempSessionID = "temp_session_id"
	KeyDeviceID      = "device_id"
)

// ClientStore is the typed view over a Repo. Reads never fail: unreadable or
// malformed values are logged and treated as absent.
type ClientStore struct {
	repo      Repo
	namespace string
	logger    zerolog.Logger
}

type ClientStoreOption func(*ClientStore)

// WithNamespace prefixes every key, scoping state the way a browser origin would.
func WithNamespace(ns string) ClientStoreOption {
	return func(s *ClientStore) {
		s.namespace = ns
	}
}

func WithLogger(l zerolog.Logger) ClientStoreOption {
	return func(s *ClientStore) {
		s.logger = l
	}
}

func NewClientStore(repo Repo, options ...ClientStoreOption) *ClientStore {
	s := &ClientStore{
		repo:   repo,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *ClientStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *ClientStore) get(ctx context.Context, k string) string {
	v, err := s.repo.Get(ctx, s.key(k))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", k).Msg("client store read failed, treating as absent")
		}
		return ""
	}
	return v
}

// SessionID returns the stored bearer credential or "".
func (s *ClientStore) SessionID(ctx context.Context) string {
	return s.get(ctx, KeySessionID)
}

// Session returns the stored session, or nil when either half is missing or
// the user record does not decode.
func (s *ClientStore) Session(ctx context.Context) *sessions.Session {
	id := s.SessionID(ctx)
	raw := s.get(ctx, KeyUser)
	if id == "" || raw == "" {
		return nil
	}
	user, err := users.Decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stored user record is malformed, ignoring session")
		return nil
	}
	return &sessions.Session{ID: id, User: user}
}

// SaveSession stores an authenticated session and removes any pending challenge.
func (s *ClientStore) SaveSession(ctx context.Context, session *sessions.Session) error {
	if !session.Valid() {
		return errors.New("[ClientStore.SaveSession] incomplete session")
	}
	raw, err := session.User.Encode()
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.key(KeyTempSessionID)); err != nil {
		return err
	}
	if err := s.repo.Set(ctx, s.key(KeySessionID), session.ID); err != nil {
		return err
	}
	return s.repo.Set(ctx, s.key(KeyUser), raw)
}

// TempSessionID returns the pending challenge id or "".
func (s *ClientStore) TempSessionID(ctx context.Context) string {
	return s.get(ctx, KeyTempSessionID)
}

// SaveTempSession stores a pending challenge and removes any session.
func (s *ClientStore) SaveTempSession(ctx context.Context, tempSessionID string) error {
	if tempSessionID == "" {
		return errors.New("[ClientStore.SaveTempSession] empty temp session id")
	}
	if err := s.ClearSession(ctx); err != nil {
		return err
	}
	return s.repo.Set(ctx, s.key(KeyTempSessionID), tempSessionID)
}

func (s *ClientStore) ClearTempSession(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key(KeyTempSessionID))
}

func (s *ClientStore) ClearSession(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key(KeySessionID), s.key(KeyUser))
}

// Clear removes every credential key. The device id is kept.
func (s *ClientStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key(KeySessionID), s.key(KeyUser), s.key(KeyTempSessionID))
}

// DeviceID returns a stable per-install identifier, creating it on first use.
// If the id cannot be persisted a fresh one is returned for this process.
func (s *ClientStore) DeviceID(ctx context.Context) string {
	if id := s.get(ctx, KeyDeviceID); id != "" {
		return id
	}
	id := uuid.New().String()
	if err := s.repo.Set(ctx, s.key(KeyDeviceID), id); err != nil {
		s.logger.Warn().Err(err).Msg("could not persist device id")
	}
	return id
}
