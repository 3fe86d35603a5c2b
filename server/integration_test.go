package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/identity"
	"github.com/jrsteele09/go-auth-session/internal/config"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const password = "integration-password"

type stack struct {
	url     string
	repo    store.Repo
	store   *store.ClientStore
	coord   *transport.Coordinator
	client  *identity.Client
	service *auth.AuthenticationService
	staff   server.DemoAccount
	faculty server.DemoAccount
}

func newStack(t *testing.T) *stack {
	t.Helper()
	accounts := fakeuserrepo.NewFakeUserRepo()
	demo, err := server.SeedDemoAccounts(accounts, password)
	require.NoError(t, err)

	srv, err := server.New(config.New(), accounts, loginsession.NewInMemoryLoginSessionRepo(), server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	st := &stack{url: hs.URL, repo: store.NewMemoryRepo(), staff: demo[0], faculty: demo[1]}
	st.connect(t)
	return st
}

// connect builds a fresh client side over the same durable store, the way a
// restarted process would.
func (st *stack) connect(t *testing.T) {
	t.Helper()
	st.store = store.NewClientStore(st.repo, store.WithLogger(zerolog.Nop()))
	st.coord = transport.NewCoordinator(st.url, st.store, transport.WithLogger(zerolog.Nop()))
	st.client = identity.NewClient(st.coord)
	validator := identity.NewValidator(st.client, identity.WithValidatorLogger(zerolog.Nop()))
	st.coord.SetValidator(validator)

	svc, err := auth.NewAuthenticationService(auth.Dependencies{
		Identity:  st.client,
		Store:     st.store,
		Validator: validator,
		Events:    st.coord,
	}, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	st.service = svc
}

func TestTwoFactorLoginAgainstStub(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)

	res, err := st.service.Login(ctx, auth.LoginInput{Identifier: st.faculty.Identifier, Password: password})
	require.NoError(t, err)
	require.True(t, res.Requires2FA)
	require.Equal(t, 600, res.ExpiresIn)
	require.Equal(t, auth.PhaseAwaitingTwoFactor, st.service.State().Phase())
	require.Equal(t, res.TempSessionID, st.store.TempSessionID(ctx))

	err = st.service.Verify2FA(ctx, "000000x")
	require.ErrorIs(t, err, apperrors.ErrInvalidTwoFactorCode)
	require.Equal(t, auth.PhaseAwaitingTwoFactor, st.service.State().Phase())

	code, err := token.TOTPCode(st.faculty.TOTPSecret, time.Now())
	require.NoError(t, err)
	require.NoError(t, st.service.Verify2FA(ctx, code))

	state := st.service.State()
	require.Equal(t, auth.PhaseAuthenticated, state.Phase())
	require.True(t, st.service.IsInstitutionalUser())
	require.False(t, st.service.CanAccessDashboard())
	require.Equal(t, state.SessionID, st.store.SessionID(ctx))
	require.Empty(t, st.store.TempSessionID(ctx))

	var me users.User
	require.NoError(t, st.coord.DoJSON(ctx, http.MethodGet, server.RouteAPIMe, nil, &me))
	require.Equal(t, "jose.perez", me.Username)

	require.NoError(t, st.service.Logout(ctx))
	require.Equal(t, auth.PhaseUnauthenticated, st.service.State().Phase())
	require.Empty(t, st.store.SessionID(ctx))

	v, err := st.client.ValidateSession(ctx, state.SessionID)
	require.NoError(t, err)
	require.False(t, v.Valid)
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)

	res, err := st.service.Login(ctx, auth.LoginInput{Identifier: st.staff.Identifier, Password: password})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, st.service.IsInternalUser())

	st.connect(t)
	st.service.Initialize(ctx)
	state := st.service.State()
	require.Equal(t, auth.PhaseAuthenticated, state.Phase())
	require.Equal(t, "maria.gonzalez", state.User.Username)
}

func TestRevokedSessionLogsOut(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)

	_, err := st.service.Login(ctx, auth.LoginInput{Identifier: st.staff.Identifier, Password: password})
	require.NoError(t, err)
	sessionID := st.service.State().SessionID

	// Revoked behind the client's back
	out, err := st.client.Logout(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, out.Success)

	_, err = st.coord.Do(ctx, http.MethodGet, server.RouteAPIMe, nil)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	state := st.service.State()
	require.Equal(t, auth.PhaseUnauthenticated, state.Phase())
	require.Equal(t, apperrors.KindUnauthenticated, state.ErrorKind)
	require.Empty(t, st.store.SessionID(ctx))
}

func TestSessionMissingFromStoreLogsOut(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)

	_, err := st.service.Login(ctx, auth.LoginInput{Identifier: st.staff.Identifier, Password: password})
	require.NoError(t, err)
	require.Equal(t, auth.PhaseAuthenticated, st.service.State().Phase())

	// The store loses the session while the state still holds it
	require.NoError(t, st.store.ClearSession(ctx))

	_, err = st.coord.Do(ctx, http.MethodGet, server.RouteAPIMe, nil)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	state := st.service.State()
	require.Equal(t, auth.PhaseUnauthenticated, state.Phase())
	require.Equal(t, apperrors.KindUnauthenticated, state.ErrorKind)
	require.Empty(t, state.SessionID)
}

func TestInvalidCredentialsAgainstStub(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)

	_, err := st.service.Login(ctx, auth.LoginInput{Identifier: st.staff.Identifier, Password: "nope"})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	state := st.service.State()
	require.Equal(t, auth.PhaseUnauthenticated, state.Phase())
	require.Equal(t, "Invalid username or password", state.Error)
}
