package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/require"
)

const testSessionID = "sess-123"

// fakeValidator blocks until released when a gate is set.
type fakeValidator struct {
	valid   bool
	gate    chan struct{}
	started chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
	onValid func()
}

func (v *fakeValidator) Validate(ctx context.Context, sessionID string) bool {
	v.calls.Add(1)
	if v.started != nil {
		close(v.started)
	}
	if v.gate != nil {
		<-v.gate
	}
	v.ctxErr.Store(fmt.Sprint(ctx.Err()))
	if v.valid && v.onValid != nil {
		v.onValid()
	}
	return v.valid && sessionID == testSessionID
}

type recordedRequest struct {
	path   string
	body   string
	header http.Header
}

// identityServer answers 401 to authenticated requests until recovered is set.
type identityServer struct {
	*httptest.Server
	recovered atomic.Bool
	rejected  atomic.Int32

	mu       sync.Mutex
	requests []recordedRequest
}

func newIdentityServer(t *testing.T, handler http.HandlerFunc) *identityServer {
	t.Helper()
	s := &identityServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, recordedRequest{path: r.URL.Path, body: string(body), header: r.Header.Clone()})
		s.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		if !s.recovered.Load() {
			s.rejected.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":{"message":"Session expired"}}`))
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *identityServer) recorded() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func newClientStore(t *testing.T, withSession bool) *store.ClientStore {
	t.Helper()
	cs := store.NewClientStore(store.NewMemoryRepo())
	if withSession {
		u, err := users.FromAuthentication(1, "internal_user", "ana@medialab.edu")
		require.NoError(t, err)
		require.NoError(t, cs.SaveSession(context.Background(), &sessions.Session{ID: testSessionID, User: u}))
	}
	return cs
}

func queued(c *Coordinator) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.queue))
	for _, p := range c.queue {
		paths = append(paths, p.req.path)
	}
	return paths
}

func TestDo_AttachesHeaders(t *testing.T) {
	srv := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	cs := newClientStore(t, true)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	c := NewCoordinator(srv.URL, cs, WithUserAgent("test-agent"), WithDeviceName("laptop"), WithNowFunc(func() time.Time { return now }))

	_, err := c.Do(context.Background(), http.MethodGet, "/me", nil)
	require.NoError(t, err)
	_, err = c.Do(context.Background(), http.MethodPost, "/auth/login", map[string]string{"a": "b"}, WithSkipAuth())
	require.NoError(t, err)

	reqs := srv.recorded()
	require.Len(t, reqs, 2)

	h := reqs[0].header
	require.Equal(t, "Bearer "+testSessionID, h.Get("Authorization"))
	require.Equal(t, "test-agent", h.Get("User-Agent"))
	require.Equal(t, "2025-03-01T11:00:00Z", h.Get(HeaderRequestTimestamp))
	require.NotEmpty(t, h.Get(HeaderRequestID))

	raw, err := base64.StdEncoding.DecodeString(h.Get(HeaderDeviceInfo))
	require.NoError(t, err)
	var info DeviceInfo
	require.NoError(t, json.Unmarshal(raw, &info))
	require.Equal(t, "laptop", info.DeviceName)
	require.Equal(t, cs.DeviceID(context.Background()), info.DeviceID)
	require.Equal(t, info.DeviceID, h.Get(HeaderDeviceFingerprint))

	require.Empty(t, reqs[1].header.Get("Authorization"))
	require.Equal(t, "application/json", reqs[1].header.Get("Content-Type"))
	require.NotEqual(t, h.Get(HeaderRequestID), reqs[1].header.Get(HeaderRequestID))
}

func TestDo_ConcurrentUnauthorizedSharesOneValidation(t *testing.T) {
	const n = 8
	srv := newIdentityServer(t, nil)
	validator := &fakeValidator{valid: true, gate: make(chan struct{}), started: make(chan struct{})}
	validator.onValid = func() { srv.recovered.Store(true) }
	c := NewCoordinator(srv.URL, newClientStore(t, true), WithValidator(validator))

	var lost atomic.Int32
	c.OnSessionLost(func() { lost.Add(1) })

	type outcome struct {
		body string
		err  error
	}
	results := make([]outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, err := c.Do(context.Background(), http.MethodPost, fmt.Sprintf("/items/%d", i), map[string]int{"n": i})
			results[i] = outcome{body: string(body), err: err}
		}(i)
	}

	<-validator.started
	require.Eventually(t, func() bool { return len(queued(c)) == n-1 }, 2*time.Second, time.Millisecond)
	order := queued(c)
	close(validator.gate)
	wg.Wait()

	require.Equal(t, int32(1), validator.calls.Load())
	require.Equal(t, int32(0), lost.Load())
	for i, r := range results {
		require.NoError(t, r.err)
		require.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), r.body)
	}

	// every request was sent twice with identical bytes
	reqs := srv.recorded()
	require.Len(t, reqs, 2*n)
	bodies := make(map[string][]string)
	for _, r := range reqs {
		bodies[r.path] = append(bodies[r.path], r.body)
	}
	for path, b := range bodies {
		require.Len(t, b, 2, path)
		require.Equal(t, b[0], b[1], path)
	}

	// the leader replays first, then the queue in arrival order
	replays := make([]string, 0, n)
	for _, r := range reqs[n:] {
		replays = append(replays, r.path)
	}
	require.Equal(t, order, replays[1:])
	require.NotContains(t, order, replays[0])

	c.mu.Lock()
	defer c.mu.Unlock()
	require.False(t, c.validating)
	require.Empty(t, c.queue)
}

func TestDo_RejectedSessionFailsEveryWaiter(t *testing.T) {
	const n = 5
	srv := newIdentityServer(t, nil)
	validator := &fakeValidator{valid: false, gate: make(chan struct{}), started: make(chan struct{})}
	cs := newClientStore(t, true)
	c := NewCoordinator(srv.URL, cs, WithValidator(validator))

	var lost atomic.Int32
	unsubscribe := c.OnSessionLost(func() { lost.Add(1) })
	defer unsubscribe()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Do(context.Background(), http.MethodGet, fmt.Sprintf("/items/%d", i), nil)
		}(i)
	}

	<-validator.started
	require.Eventually(t, func() bool { return len(queued(c)) == n-1 }, 2*time.Second, time.Millisecond)
	close(validator.gate)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
		require.Equal(t, apperrors.FallbackMessage(apperrors.KindUnauthenticated), apperrors.Message(err))
	}
	require.Equal(t, int32(1), validator.calls.Load())
	require.Equal(t, int32(1), lost.Load())
	require.Nil(t, cs.Session(context.Background()))
	require.Len(t, srv.recorded(), n)
}

func TestDo_ReplayUnauthorizedIsFinal(t *testing.T) {
	srv := newIdentityServer(t, nil)
	validator := &fakeValidator{valid: true}
	cs := newClientStore(t, true)
	c := NewCoordinator(srv.URL, cs, WithValidator(validator))

	var lost atomic.Int32
	c.OnSessionLost(func() { lost.Add(1) })

	_, err := c.Do(context.Background(), http.MethodGet, "/items", nil)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.Equal(t, int32(1), validator.calls.Load())
	require.Equal(t, int32(0), lost.Load())
	require.NotNil(t, cs.Session(context.Background()))
	require.Len(t, srv.recorded(), 2)

	c.mu.Lock()
	defer c.mu.Unlock()
	require.False(t, c.validating)
}

func TestDo_SkipAuthNeverValidates(t *testing.T) {
	srv := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"message":"Invalid username or password"}}`))
	})
	validator := &fakeValidator{valid: true}
	c := NewCoordinator(srv.URL, newClientStore(t, true), WithValidator(validator))

	_, err := c.Do(context.Background(), http.MethodPost, "/auth/login", map[string]string{},
		WithSkipAuth(), WithRejectionKind(apperrors.KindInvalidCredentials))
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	require.Equal(t, "Invalid username or password", apperrors.Message(err))

	_, err = c.Do(context.Background(), http.MethodGet, "/public", nil, WithSkipAuth())
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.Equal(t, int32(0), validator.calls.Load())
}

func TestDo_NoStoredSession(t *testing.T) {
	srv := newIdentityServer(t, nil)
	validator := &fakeValidator{valid: true}
	c := NewCoordinator(srv.URL, newClientStore(t, false), WithValidator(validator))

	var lost atomic.Int32
	c.OnSessionLost(func() { lost.Add(1) })

	_, err := c.Do(context.Background(), http.MethodGet, "/items", nil)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.Equal(t, int32(0), validator.calls.Load())
	require.Equal(t, int32(1), lost.Load())
	require.Empty(t, srv.recorded()[0].header.Get("Authorization"))
}

func TestDo_ValidationOutlivesCallerCancellation(t *testing.T) {
	srv := newIdentityServer(t, nil)
	validator := &fakeValidator{valid: true, gate: make(chan struct{}), started: make(chan struct{})}
	validator.onValid = func() { srv.recovered.Store(true) }
	c := NewCoordinator(srv.URL, newClientStore(t, true), WithValidator(validator))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, http.MethodGet, "/items", nil)
		done <- err
	}()

	<-validator.started
	cancel()
	close(validator.gate)

	err := <-done
	require.ErrorIs(t, err, apperrors.ErrNetwork)
	require.Equal(t, "<nil>", validator.ctxErr.Load())

	_, err = c.Do(context.Background(), http.MethodGet, "/items", nil)
	require.NoError(t, err)
}

func TestDo_NetworkFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		validator := &fakeValidator{valid: true}
		c := NewCoordinator(url, newClientStore(t, true), WithValidator(validator))
		_, err := c.Do(context.Background(), http.MethodGet, "/items", nil)
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.Equal(t, int32(0), validator.calls.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
			<-release
		})
		defer close(release)

		c := NewCoordinator(srv.URL, newClientStore(t, true), WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
		_, err := c.Do(context.Background(), http.MethodGet, "/slow", nil)
		require.ErrorIs(t, err, apperrors.ErrNetwork)
	})
}

func TestDo_ServiceErrors(t *testing.T) {
	srv := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"Authentication error: db down"}`))
			return
		}
		_, _ = w.Write([]byte(`not json`))
	})
	c := NewCoordinator(srv.URL, newClientStore(t, true))

	_, err := c.Do(context.Background(), http.MethodGet, "/broken", nil)
	require.ErrorIs(t, err, apperrors.ErrService)
	require.Equal(t, "Authentication error: db down", apperrors.Message(err))

	var e *apperrors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusInternalServerError, e.Status)

	var out map[string]any
	err = c.DoJSON(context.Background(), http.MethodGet, "/garbage", nil, &out)
	require.ErrorIs(t, err, apperrors.ErrService)
}

func TestOnSessionLostUnsubscribe(t *testing.T) {
	srv := newIdentityServer(t, nil)
	c := NewCoordinator(srv.URL, newClientStore(t, true), WithValidator(&fakeValidator{valid: false}))

	var lost atomic.Int32
	unsubscribe := c.OnSessionLost(func() { lost.Add(1) })
	unsubscribe()

	_, err := c.Do(context.Background(), http.MethodGet, "/items", nil)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.Equal(t, int32(0), lost.Load())
}
