package main

import (
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/identity"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// app is the coordinator wired for one CLI invocation.
type app struct {
	repo    store.Repo
	store   *store.ClientStore
	coord   *transport.Coordinator
	client  *identity.Client
	service *auth.AuthenticationService
}

func openApp(ctx context.Context, c config.Config, url string) (*app, error) {
	repo, err := store.Open(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "opening client store")
	}

	cs := store.NewClientStore(repo, store.WithNamespace(c.GetStoreNamespace()))
	coord := transport.NewCoordinator(url, cs,
		transport.WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}),
		transport.WithValidationTimeout(c.GetValidationTimeout()),
		transport.WithUserAgent(c.GetUserAgent()),
		transport.WithDeviceName(c.GetDeviceName()),
	)
	client := identity.NewClient(coord)
	validator := identity.NewValidator(client)
	coord.SetValidator(validator)

	service, err := auth.NewAuthenticationService(auth.Dependencies{
		Identity:  client,
		Store:     cs,
		Validator: validator,
		Events:    coord,
	},
		auth.WithTwoFactorTick(c.GetTwoFactorTick()),
		auth.WithTempSessionTTL(c.GetTwoFactorTTL()),
		auth.WithDeviceName(c.GetDeviceName()),
		auth.WithRestoreTimeout(c.GetValidationTimeout()),
	)
	if err != nil {
		closeRepo(repo)
		return nil, errors.Wrap(err, "building authentication service")
	}

	return &app{repo: repo, store: cs, coord: coord, client: client, service: service}, nil
}

func (a *app) Close() {
	a.service.Close()
	closeRepo(a.repo)
}

func closeRepo(repo store.Repo) {
	if closer, ok := repo.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Err(err).Msg("closing client store")
		}
	}
}

// withApp loads config, opens the app and runs fn with it.
func withApp(ctx context.Context, fn func(*app) int) int {
	c, err := loadConfig()
	if err != nil {
		log.Err(err).Msg("loading configuration")
		return 2
	}
	a, err := openApp(ctx, c, baseURL(c))
	if err != nil {
		log.Err(err).Msg("starting")
		return 2
	}
	defer a.Close()
	return fn(a)
}
