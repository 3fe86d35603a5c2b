package transport

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var errNoSession = errors.New("no session credential stored")

// CredentialStore is the part of the client store the coordinator reads and clears.
type CredentialStore interface {
	SessionID(ctx context.Context) string
	DeviceID(ctx context.Context) string
	ClearSession(ctx context.Context) error
}

type sessionTokenSource struct {
	ctx   context.Context
	store CredentialStore
}

// SessionTokenSource exposes the stored session id as a bearer token, read
// fresh from the store on every call.
func SessionTokenSource(ctx context.Context, store CredentialStore) oauth2.TokenSource {
	return sessionTokenSource{ctx: ctx, store: store}
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	id := s.store.SessionID(s.ctx)
	if id == "" {
		return nil, errNoSession
	}
	return &oauth2.Token{AccessToken: id, TokenType: "Bearer"}, nil
}
