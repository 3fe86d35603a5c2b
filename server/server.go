// Package server is a small stand-in for the Identity Service. It serves the
// login, two-factor, logout and session validation endpoints with the same
// JSON shapes and messages as the real service, for local development and
// integration tests.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	accounts   users.AccountRepo
	challenges loginsession.Repo
	sessions   *token.Manager
	revoked    token.RevokedSessionCache
	attempts   *attemptTracker
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

type Option func(*Server)

// WithNowFunc sets the clock used for session, challenge and TOTP checks.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithRevokedSessionCache replaces the in-memory record of logged out sessions.
func WithRevokedSessionCache(cache token.RevokedSessionCache) Option {
	return func(s *Server) {
		s.revoked = cache
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg config.Config, accounts users.AccountRepo, challenges loginsession.Repo, options ...Option) (*Server, error) {
	if accounts == nil {
		return nil, errors.New("[Server New] account repo is required")
	}
	if challenges == nil {
		return nil, errors.New("[Server New] login session repo is required")
	}
	secret := cfg.GetSigningSecret()
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("[Server New] signing secret is required")
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		accounts:   accounts,
		challenges: challenges,
		attempts:   newAttemptTracker(maxFailedLogins, failedLoginWindow, failedLoginBlock),
		nowFunc:    time.Now,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.revoked == nil {
		s.revoked = token.NewInMemoryRevokedSessionCache()
	}
	s.sessions = token.New(
		token.NewHMACSigner(secret, cfg.GetPreviousSigningSecrets()...),
		token.WithNowFunc(s.nowFunc),
		token.WithRevokedSessionCache(s.revoked),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Cleanup drops expired two-factor challenges and revocations of sessions
// that have expired anyway.
func (s *Server) Cleanup() (challenges, revocations int) {
	return s.challenges.DeleteExpired(s.nowFunc()), s.sessions.CleanupRevokedSessions()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = colourOther
	}
	s.logger.Info().Msgf("[%-19s] %s", color+paddedMethod+colourReset, path)
}
