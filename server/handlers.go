package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/identity"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

const (
	contentTypeJSON = "application/json"
	maxRequestBody  = 1 << 20
)

// Messages of the Identity Service. Clients match some of them, keep them verbatim.
const (
	msgLoginSuccessful      = "Login successful"
	msgTwoFactorRequired    = "Two-factor authentication required"
	msgInvalidCredentials   = "Invalid username or password"
	msgAccountInactive      = "Account is not active"
	msgAccountLocked        = "Account is locked"
	msgUserRateLimited      = "Too many failed attempts for this account"
	msgTwoFactorSuccessful  = "Two-factor authentication successful"
	msgInvalidTempSession   = "Invalid or expired temporary session"
	msgTempSessionExpired   = "Temporary session has expired"
	msgUserNotFound         = "User not found"
	msgInvalidTwoFactorCode = "Invalid two-factor authentication code"
	msgLogoutSuccessful     = "Logout successful"
	msgLogoutNotFound       = "Session not found or already expired"
	msgSessionNotFound      = "Session not found or expired"
	msgInvalidRequest       = "Invalid request body"
	msgMissingAuthorization = "Missing Authorization header"
	msgInvalidAuthorization = "Invalid Authorization header format"
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": s.config.GetAppName()})
	}
}

// LoginHandler checks the password and either opens a session or, for
// accounts with 2FA, a challenge the client completes at verify-2fa.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.LoginRequest
		if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
			writeDetail(w, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		now := s.nowFunc()

		if until, blocked := s.attempts.BlockedUntil(req.Identifier, now); blocked {
			writeRateLimited(w, until)
			return
		}

		account, err := s.accounts.GetByIdentifier(req.Identifier)
		if err != nil || !users.CheckPasswordHash(req.Password, account.PasswordHash) {
			if until, blocked := s.attempts.Fail(req.Identifier, now); blocked {
				s.logger.Warn().Str("identifier", req.Identifier).Time("blocked_until", until).Msg("login locked out")
				writeRateLimited(w, until)
				return
			}
			writeDetail(w, http.StatusUnauthorized, msgInvalidCredentials, nil)
			return
		}
		if account.Blocked {
			writeDetail(w, http.StatusUnauthorized, msgAccountLocked, nil)
			return
		}
		if !account.IsActive {
			writeDetail(w, http.StatusUnauthorized, msgAccountInactive, nil)
			return
		}
		s.attempts.Reset(req.Identifier)

		if account.TwoFactorEnabled() {
			challenge := loginsession.Challenge{
				ID:         uuid.New().String(),
				UserID:     account.ID,
				UserType:   account.UserType,
				RememberMe: req.RememberMe,
				DeviceName: req.DeviceName,
				CreatedAt:  now,
				ExpiresAt:  now.Add(s.config.GetTempSessionTTL()),
			}
			if err := s.challenges.Upsert(challenge); err != nil {
				s.internalError(w, "Authentication error", errors.Wrap(err, "LoginHandler Upsert challenge"))
				return
			}
			writeJSON(w, http.StatusOK, identity.LoginResponse{
				Success:       false,
				Message:       msgTwoFactorRequired,
				Requires2FA:   true,
				TempSessionID: challenge.ID,
				ExpiresIn:     challenge.ExpiresIn(now),
			})
			return
		}

		sessionID, info, err := s.createSession(account, req.RememberMe, false)
		if err != nil {
			s.internalError(w, "Authentication error", errors.Wrap(err, "LoginHandler"))
			return
		}
		writeJSON(w, http.StatusOK, identity.LoginResponse{
			Success:   true,
			Message:   msgLoginSuccessful,
			UserID:    account.ID,
			UserType:  string(account.UserType),
			SessionID: sessionID,
			ExpiresAt: formatTime(info.ExpiresAt),
		})
	}
}

// Verify2FAHandler completes a challenge with a TOTP code. A challenge
// survives maxTwoFactorAttempts wrong codes.
func (s *Server) Verify2FAHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.Verify2FARequest
		if err := decodeBody(w, r, &req); err != nil || req.TempSessionID == "" || strings.TrimSpace(req.Code) == "" {
			writeDetail(w, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		now := s.nowFunc()

		challenge, err := s.challenges.Get(req.TempSessionID)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, msgInvalidTempSession, nil)
			return
		}
		if challenge.Expired(now) {
			_ = s.challenges.Delete(challenge.ID)
			writeDetail(w, http.StatusUnauthorized, msgTempSessionExpired, nil)
			return
		}

		account, err := s.accounts.GetByID(challenge.UserID)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, msgUserNotFound, nil)
			return
		}

		if !account.TwoFactorEnabled() || !token.ValidateTOTP(strings.TrimSpace(req.Code), account.TOTPSecret, now) {
			challenge.Attempts++
			if challenge.Attempts >= maxTwoFactorAttempts {
				_ = s.challenges.Delete(challenge.ID)
			} else if err := s.challenges.Upsert(challenge); err != nil {
				s.logger.Err(err).Int("user_id", account.ID).Msg("failed to record 2FA attempt")
			}
			writeDetail(w, http.StatusUnauthorized, msgInvalidTwoFactorCode, nil)
			return
		}

		if err := s.challenges.Delete(challenge.ID); err != nil {
			s.internalError(w, "2FA verification error", errors.Wrap(err, "Verify2FAHandler Delete challenge"))
			return
		}
		sessionID, info, err := s.createSession(account, challenge.RememberMe, true)
		if err != nil {
			s.internalError(w, "2FA verification error", errors.Wrap(err, "Verify2FAHandler"))
			return
		}
		writeJSON(w, http.StatusOK, identity.Verify2FAResponse{
			Success:   true,
			Message:   msgTwoFactorSuccessful,
			UserID:    account.ID,
			UserType:  string(account.UserType),
			SessionID: sessionID,
			ExpiresAt: formatTime(info.ExpiresAt),
		})
	}
}

// LogoutHandler revokes a session. An unknown or expired session is a 200
// with success=false.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.LogoutRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeDetail(w, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}

		info, err := s.sessions.Introspection(req.SessionID)
		if err != nil || !info.Active {
			writeJSON(w, http.StatusOK, identity.LogoutResponse{Success: false, Message: msgLogoutNotFound})
			return
		}
		if err := s.sessions.Revoke(req.SessionID); err != nil {
			s.internalError(w, "Logout error", errors.Wrap(err, "LogoutHandler"))
			return
		}
		writeJSON(w, http.StatusOK, identity.LogoutResponse{Success: true, Message: msgLogoutSuccessful})
	}
}

// ValidateSessionHandler answers 200 either way; valid=false means the
// session must not be used.
func (s *Server) ValidateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := s.activeSession(r.PathValue("session_id"))
		if !ok {
			writeJSON(w, http.StatusOK, identity.ValidateResponse{Valid: false, Message: msgSessionNotFound})
			return
		}
		writeJSON(w, http.StatusOK, identity.ValidateResponse{
			Valid:         true,
			UserID:        info.UserID,
			UserType:      string(info.UserType),
			ExpiresAt:     formatTime(info.ExpiresAt),
			Is2FAVerified: info.TwoFactorVerified,
		})
	}
}

// MeHandler returns the caller's user record.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := sessionFromContext(r.Context())
		if !ok {
			writeDetail(w, http.StatusUnauthorized, msgSessionNotFound, nil)
			return
		}
		account, err := s.accounts.GetByID(info.UserID)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, msgUserNotFound, nil)
			return
		}
		writeJSON(w, http.StatusOK, account.User)
	}
}

func (s *Server) createSession(account *users.Account, rememberMe, twoFactorVerified bool) (string, *token.SessionIntrospection, error) {
	ttl := s.config.GetSessionTTL()
	if rememberMe {
		ttl = s.config.GetRememberMeSessionTTL()
	}
	sessionID, info, err := s.sessions.CreateSession(&account.User, ttl, twoFactorVerified)
	if err != nil {
		return "", nil, errors.Wrap(err, "createSession")
	}
	return sessionID, info, nil
}

// activeSession introspects a session id and checks its account may still
// log in.
func (s *Server) activeSession(sessionID string) (*token.SessionIntrospection, bool) {
	info, err := s.sessions.Introspection(sessionID)
	if err != nil || !info.Active {
		return nil, false
	}
	account, err := s.accounts.GetByID(info.UserID)
	if err != nil || !account.CanLogin() {
		return nil, false
	}
	return info, true
}

func (s *Server) internalError(w http.ResponseWriter, prefix string, err error) {
	s.logger.Err(err).Msg(prefix)
	writeErrorString(w, http.StatusInternalServerError, prefix+": "+errors.Cause(err).Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a rejection as {"detail": {"message": ..., extra...}}.
func writeDetail(w http.ResponseWriter, status int, message string, extra map[string]any) {
	detail := map[string]any{"message": message}
	for k, v := range extra {
		detail[k] = v
	}
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeErrorString(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeRateLimited(w http.ResponseWriter, until time.Time) {
	writeDetail(w, http.StatusTooManyRequests, msgUserRateLimited, map[string]any{"blocked_until": formatTime(until)})
}
