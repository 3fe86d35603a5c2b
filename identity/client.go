// Package identity is the typed client of the Identity Service endpoints and
// the session validator used by the transport coordinator.
package identity

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/transport"
)

const (
	LoginPath     = "/auth/login"
	Verify2FAPath = "/auth/verify-2fa"
	LogoutPath    = "/auth/logout"
)

// Messages the service uses when a challenge can no longer be answered.
var tempSessionGoneMessages = []string{
	"temporary session has expired",
	"invalid or expired temporary session",
}

// Transport is the part of the coordinator the client needs.
type Transport interface {
	DoJSON(ctx context.Context, method, path string, body, out any, options ...transport.RequestOption) error
}

type Client struct {
	transport Transport
}

func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// ValidatePath is the validation endpoint for sessionID.
func ValidatePath(sessionID string) string {
	return "/auth/session/" + url.PathEscape(sessionID) + "/validate"
}

// Login submits credentials. Rejections (401, 429) are InvalidCredentials.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.transport.DoJSON(ctx, http.MethodPost, LoginPath, req, &resp,
		transport.WithSkipAuth(),
		transport.WithRejectionKind(apperrors.KindInvalidCredentials),
	)
	if err != nil {
		return nil, err
	}
	if !resp.Success && !resp.Requires2FA {
		return nil, apperrors.New(apperrors.KindInvalidCredentials, resp.Message)
	}
	return &resp, nil
}

// Verify2FA answers a challenge. A wrong code is InvalidTwoFactorCode; a
// challenge the service no longer knows is TempSessionExpired.
func (c *Client) Verify2FA(ctx context.Context, req Verify2FARequest) (*Verify2FAResponse, error) {
	var resp Verify2FAResponse
	err := c.transport.DoJSON(ctx, http.MethodPost, Verify2FAPath, req, &resp,
		transport.WithSkipAuth(),
		transport.WithRejectionKind(apperrors.KindInvalidTwoFactorCode),
	)
	if err != nil {
		return nil, refineChallengeError(err)
	}
	if !resp.Success {
		return nil, refineChallengeError(apperrors.New(apperrors.KindInvalidTwoFactorCode, resp.Message))
	}
	return &resp, nil
}

// Logout ends the session on the service. A response with success=false means
// the service no longer had the session, which is not an error.
func (c *Client) Logout(ctx context.Context, sessionID string) (*LogoutResponse, error) {
	var resp LogoutResponse
	err := c.transport.DoJSON(ctx, http.MethodPost, LogoutPath, LogoutRequest{SessionID: sessionID}, &resp,
		transport.WithSkipAuth(),
	)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateSession reports the service's view of sessionID.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.transport.DoJSON(ctx, http.MethodGet, ValidatePath(sessionID), nil, &resp, transport.WithSkipAuth()); err != nil {
		return nil, err
	}
	return &resp, nil
}

func refineChallengeError(err error) error {
	var e *apperrors.Error
	if !apperrors.As(err, &e) || e.Kind != apperrors.KindInvalidTwoFactorCode {
		return err
	}
	msg := strings.ToLower(e.Message)
	for _, m := range tempSessionGoneMessages {
		if strings.Contains(msg, m) {
			refined := apperrors.TempSessionExpired()
			refined.Status = e.Status
			refined.Internal = e
			return refined
		}
	}
	return err
}
