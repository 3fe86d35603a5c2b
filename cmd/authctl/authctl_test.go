package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testPassword = "cli-password"

type cliFixture struct {
	url       string
	storePath string
	staff     server.DemoAccount
	faculty   server.DemoAccount
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	accounts := fakeuserrepo.NewFakeUserRepo()
	demo, err := server.SeedDemoAccounts(accounts, testPassword)
	require.NoError(t, err)
	s, err := server.New(config.New(), accounts, loginsession.NewInMemoryLoginSessionRepo(), server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	hs := httptest.NewServer(s)
	t.Cleanup(hs.Close)

	t.Setenv("STORE_BACKEND", config.StoreBackendFile)
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "store.json"))
	return &cliFixture{url: hs.URL, staff: demo[0], faculty: demo[1]}
}

// open starts a fresh invocation over the same store file.
func (f *cliFixture) open(t *testing.T) *app {
	t.Helper()
	a, err := openApp(context.Background(), config.New(), f.url)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestLoginStatusGetLogout(t *testing.T) {
	ctx := context.Background()
	f := newCLIFixture(t)

	var out bytes.Buffer
	code := runLogin(ctx, f.open(t), loginOptions{identifier: f.staff.Identifier, password: testPassword}, strings.NewReader(""), &out)
	require.Equal(t, 0, code, out.String())
	require.Contains(t, out.String(), "Logged in as maria.gonzalez (internal_user)")

	out.Reset()
	require.Equal(t, 0, runStatus(ctx, f.open(t), &out))
	require.Contains(t, out.String(), "Logged in as:  maria.gonzalez")
	require.Contains(t, out.String(), "Dashboard:     yes")

	out.Reset()
	require.Equal(t, 0, runGet(ctx, f.open(t), server.RouteAPIMe, &out))
	require.Contains(t, out.String(), `"username": "maria.gonzalez"`)

	out.Reset()
	require.Equal(t, 0, runLogout(ctx, f.open(t), &out))
	require.Equal(t, "Logged out.\n", out.String())

	out.Reset()
	require.Equal(t, 1, runStatus(ctx, f.open(t), &out))
	require.Equal(t, "Not logged in.\n", out.String())

	out.Reset()
	require.Equal(t, 0, runLogout(ctx, f.open(t), &out))
	require.Equal(t, "Not logged in.\n", out.String())
}

func TestLoginTwoFactorPrompt(t *testing.T) {
	ctx := context.Background()
	f := newCLIFixture(t)

	now := time.Now()
	good, err := token.TOTPCode(f.faculty.TOTPSecret, now)
	require.NoError(t, err)
	bad := "12345x"

	in := strings.NewReader(strings.Join([]string{f.faculty.Identifier, testPassword, bad, good}, "\n") + "\n")
	var out bytes.Buffer
	code := runLogin(ctx, f.open(t), loginOptions{}, in, &out)
	require.Equal(t, 0, code, out.String())

	output := out.String()
	require.Contains(t, output, "Username or email: ")
	require.Contains(t, output, "Two-factor authentication required, the code expires in 600 seconds.")
	require.Contains(t, output, "Error: Invalid two-factor authentication code")
	require.Contains(t, output, "Logged in as jose.perez (institutional_user)")

	out.Reset()
	require.Equal(t, 0, runStatus(ctx, f.open(t), &out))
	require.Contains(t, out.String(), "Dashboard:     no")
}

func TestLoginTwoFactorCodeFlagSingleAttempt(t *testing.T) {
	ctx := context.Background()
	f := newCLIFixture(t)

	var out bytes.Buffer
	a := f.open(t)
	code := runLogin(ctx, a, loginOptions{identifier: f.faculty.Identifier, password: testPassword, code: "12345x"}, strings.NewReader(""), &out)
	require.Equal(t, 1, code)
	require.Contains(t, out.String(), "Error: Invalid two-factor authentication code")
	require.Equal(t, auth.PhaseAwaitingTwoFactor, a.service.State().Phase())
}

func TestLoginTwoFactorNoCode(t *testing.T) {
	ctx := context.Background()
	f := newCLIFixture(t)

	var out bytes.Buffer
	a := f.open(t)
	code := runLogin(ctx, a, loginOptions{identifier: f.faculty.Identifier, password: testPassword}, strings.NewReader(""), &out)
	require.Equal(t, 1, code)
	require.Contains(t, out.String(), "No code entered.")
	require.Equal(t, auth.PhaseUnauthenticated, a.service.State().Phase())
	require.Empty(t, a.store.TempSessionID(ctx))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newCLIFixture(t)

	var out bytes.Buffer
	code := runLogin(context.Background(), f.open(t), loginOptions{identifier: f.staff.Identifier, password: "nope"}, strings.NewReader(""), &out)
	require.Equal(t, 1, code)
	require.Equal(t, "Error: Invalid username or password\n", out.String())
}

func TestGetWithoutSession(t *testing.T) {
	f := newCLIFixture(t)

	var out bytes.Buffer
	require.Equal(t, 1, runGet(context.Background(), f.open(t), server.RouteAPIMe, &out))
	require.Contains(t, out.String(), "authctl login")
}

func TestFormatStatusJSON(t *testing.T) {
	st := auth.State{
		IsAuthenticated: true,
		SessionID:       "s1",
		User:            &users.User{ID: 3, UserType: users.InternalUser, Username: "ana"},
	}
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(formatStatusJSON(st, true)), &parsed))
	require.Equal(t, "authenticated", parsed["phase"])
	require.Equal(t, true, parsed["can_access_dashboard"])
	require.Equal(t, "ana", parsed["user"].(map[string]any)["username"])

	parsed = nil
	require.NoError(t, json.Unmarshal([]byte(formatStatusJSON(auth.State{Error: "boom"}, false)), &parsed))
	require.Equal(t, "unauthenticated", parsed["phase"])
	require.Equal(t, "boom", parsed["error"])
	require.NotContains(t, parsed, "user")
}
