// Package token mints and checks the session ids handed out by the stub
// identity service. A session id is an HS256 JWT, so validation needs no
// server side session table; logout is handled by a revocation list.
package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

const (
	claimUserType          = "user_type"
	claimTwoFactorVerified = "2fa"
)

// SessionIntrospection describes a session id. When Active is false the other
// fields may be empty.
type SessionIntrospection struct {
	Active            bool
	ID                string // jti
	UserID            int
	UserType          users.UserType
	IssuedAt          time.Time
	ExpiresAt         time.Time
	TwoFactorVerified bool
}

type Manager struct {
	signer       Signer
	issuer       string
	revokedCache RevokedSessionCache
	nowFunc      func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedSessionCache(cache RevokedSessionCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		issuer:       "identity-stub",
		revokedCache: NewInMemoryRevokedSessionCache(),
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// CreateSession issues a session id for user valid for ttl.
func (m *Manager) CreateSession(user *users.User, ttl time.Duration, twoFactorVerified bool) (string, *SessionIntrospection, error) {
	if err := user.Validate(); err != nil {
		return "", nil, errors.Wrap(err, "Manager.CreateSession")
	}
	now := m.nowFunc()
	info := &SessionIntrospection{
		Active:            true,
		ID:                uuid.New().String(),
		UserID:            user.ID,
		UserType:          user.UserType,
		IssuedAt:          now,
		ExpiresAt:         now.Add(ttl),
		TwoFactorVerified: twoFactorVerified,
	}
	claims := jwt.MapClaims{
		"iss":                  m.issuer,
		"sub":                  strconv.Itoa(user.ID),
		claimUserType:          string(user.UserType),
		claimTwoFactorVerified: twoFactorVerified,
		"iat":                  now.Unix(),
		"exp":                  info.ExpiresAt.Unix(),
		"jti":                  info.ID,
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", nil, errors.Wrap(err, "Manager.CreateSession Sign")
	}
	return signed, info, nil
}

// Introspection checks signature, expiry and revocation. A malformed or
// foreign token is reported inactive together with the parse error.
func (m *Manager) Introspection(rawToken string) (*SessionIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &SessionIntrospection{Active: false}, nil
	}

	claims, err := m.parse(rawToken)
	if err != nil {
		return &SessionIntrospection{Active: false}, err
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.Atoi(sub)
	if err != nil {
		return &SessionIntrospection{Active: false}, errors.Wrap(err, "invalid sub claim")
	}
	userType, err := users.ParseUserType(stringClaim(claims, claimUserType))
	if err != nil {
		return &SessionIntrospection{Active: false}, err
	}
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	verified, _ := claims[claimTwoFactorVerified].(bool)
	jti := stringClaim(claims, "jti")

	info := &SessionIntrospection{
		Active:            true,
		ID:                jti,
		UserID:            userID,
		UserType:          userType,
		IssuedAt:          time.Unix(int64(iat), 0),
		ExpiresAt:         time.Unix(int64(exp), 0),
		TwoFactorVerified: verified,
	}
	if jti == "" {
		info.Active = false
		return info, nil
	}
	revoked, err := m.revokedCache.IsRevoked(jti)
	if err != nil {
		info.Active = false
		return info, errors.Wrap(err, "checking revocation")
	}
	info.Active = !revoked
	return info, nil
}

// Revoke invalidates a session id until its natural expiry.
func (m *Manager) Revoke(rawToken string) error {
	claims, err := m.parse(rawToken)
	if err != nil {
		return errors.Wrap(err, "invalid token")
	}
	jti := stringClaim(claims, "jti")
	if jti == "" {
		return errors.New("token missing jti claim")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return errors.New("token missing exp claim")
	}
	return m.revokedCache.Add(jti, time.Unix(int64(exp), 0))
}

// CleanupRevokedSessions drops revocations of sessions that have expired.
func (m *Manager) CleanupRevokedSessions() int {
	return m.revokedCache.Cleanup(m.nowFunc())
}

func (m *Manager) parse(rawToken string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
	)
	token, err := parser.Parse(rawToken, m.signer.GetVerificationKey)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims from token")
	}
	return claims, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
