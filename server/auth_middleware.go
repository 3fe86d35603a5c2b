package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the *token.SessionIntrospection of the caller
	ContextKeySession ContextKey = "session"
)

// RequireSession is middleware for API routes that expect a session id as a
// Bearer token. Missing, expired or revoked sessions get a 401.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeDetail(w, http.StatusUnauthorized, msgMissingAuthorization, nil)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
				writeDetail(w, http.StatusUnauthorized, msgInvalidAuthorization, nil)
				return
			}

			info, ok := s.activeSession(strings.TrimSpace(parts[1]))
			if !ok {
				writeDetail(w, http.StatusUnauthorized, msgSessionNotFound, nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, info)
			next(w, r.WithContext(ctx))
		}
	}
}

func sessionFromContext(ctx context.Context) (*token.SessionIntrospection, bool) {
	info, ok := ctx.Value(ContextKeySession).(*token.SessionIntrospection)
	return info, ok
}
