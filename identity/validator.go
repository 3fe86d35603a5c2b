package identity

import (
	"context"

	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var _ transport.SessionValidator = (*Validator)(nil)

// Validator asks the Identity Service whether a session is still valid. It
// fails closed: any error or undecodable answer means invalid. Concurrent
// checks of the same session share one call.
type Validator struct {
	client *Client
	group  singleflight.Group
	logger zerolog.Logger
}

type ValidatorOption func(*Validator)

func WithValidatorLogger(l zerolog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = l
	}
}

func NewValidator(client *Client, options ...ValidatorOption) *Validator {
	v := &Validator{
		client: client,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

func (v *Validator) Validate(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	res, err, _ := v.group.Do(sessionID, func() (interface{}, error) {
		resp, err := v.client.ValidateSession(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return resp.Valid, nil
	})
	if err != nil {
		v.logger.Warn().Err(err).Str("session", utils.ShortID(sessionID)).Msg("session validation failed, treating as invalid")
		return false
	}
	valid, _ := res.(bool)
	return valid
}
