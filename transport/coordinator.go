// Package transport is the HTTP layer every call to the Identity Service goes
// through. It attaches credentials and device headers, normalizes failures and
// recovers from 401 responses with at most one session validation in flight:
// requests that hit 401 while a validation runs are queued and replayed in
// arrival order once it resolves.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HeaderDeviceInfo        = "X-Device-Info"
	HeaderDeviceFingerprint = "X-Device-Fingerprint"
	HeaderRequestTimestamp  = "X-Request-Timestamp"
	HeaderRequestID         = "X-Request-ID"

	DefaultHTTPTimeout       = 30 * time.Second
	DefaultValidationTimeout = 10 * time.Second
	DefaultUserAgent         = "go-auth-session/1.0"
)

// SessionValidator asks the Identity Service whether a session id is still
// valid. It must never return an error: any failure is "not valid".
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) bool
}

type result struct {
	body []byte
	err  error
}

type pendingRequest struct {
	ctx  context.Context
	req  *request
	done chan result // buffered so the resolver never blocks on an abandoned waiter
}

// Coordinator is safe for concurrent use. Create one per Identity Service and
// share it.
type Coordinator struct {
	baseURL           string
	httpClient        *http.Client
	store             CredentialStore
	validator         SessionValidator
	validationTimeout time.Duration
	userAgent         string
	deviceName        string
	nowFunc           func() time.Time
	logger            zerolog.Logger

	deviceOnce   sync.Once
	deviceHeader string
	deviceID     string

	mu         sync.Mutex
	validating bool
	queue      []*pendingRequest

	listenersMu  sync.Mutex
	listeners    map[int]func()
	nextListener int
}

type CoordinatorOption func(*Coordinator)

func WithHTTPClient(client *http.Client) CoordinatorOption {
	return func(c *Coordinator) {
		c.httpClient = client
	}
}

func WithValidator(v SessionValidator) CoordinatorOption {
	return func(c *Coordinator) {
		c.validator = v
	}
}

// WithValidationTimeout bounds a validation call. The call ignores the
// cancellation of the request that started it.
func WithValidationTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.validationTimeout = d
	}
}

func WithUserAgent(ua string) CoordinatorOption {
	return func(c *Coordinator) {
		c.userAgent = ua
	}
}

func WithDeviceName(name string) CoordinatorOption {
	return func(c *Coordinator) {
		c.deviceName = name
	}
}

func WithNowFunc(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

func WithLogger(l zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func NewCoordinator(baseURL string, store CredentialStore, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		baseURL:           strings.TrimRight(baseURL, "/"),
		httpClient:        &http.Client{Timeout: DefaultHTTPTimeout},
		store:             store,
		validationTimeout: DefaultValidationTimeout,
		userAgent:         DefaultUserAgent,
		nowFunc:           time.Now,
		logger:            log.Logger,
		listeners:         make(map[int]func()),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// SetValidator installs the validator after construction, for validators that
// themselves call through this coordinator.
func (c *Coordinator) SetValidator(v SessionValidator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validator = v
}

func (c *Coordinator) BaseURL() string {
	return c.baseURL
}

// OnSessionLost registers fn to be called after a 401 cycle ends without a
// valid session, including when the store held none. The returned func
// unregisters it.
func (c *Coordinator) OnSessionLost(fn func()) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

// Do sends a request and returns the response body of a 2xx response. body,
// when not nil, is sent as JSON. Every error is an *errors.Error.
func (c *Coordinator) Do(ctx context.Context, method, path string, body any, options ...RequestOption) ([]byte, error) {
	req, err := newRequest(method, path, body, options)
	if err != nil {
		return nil, apperrors.Normalize(err)
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized && !req.skipAuth {
		return c.recoverUnauthorized(ctx, req)
	}
	return resp.result(req)
}

// DoJSON is Do with the response body decoded into out when out is not nil.
func (c *Coordinator) DoJSON(ctx context.Context, method, path string, body, out any, options ...RequestOption) error {
	data, err := c.Do(ctx, method, path, body, options...)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		e := apperrors.New(apperrors.KindService, "")
		e.Internal = apperrors.Wrapf(err, "[transport] decode %s %s", method, path)
		return e
	}
	return nil
}

// recoverUnauthorized runs or joins the validation cycle for a request that
// got 401.
func (c *Coordinator) recoverUnauthorized(ctx context.Context, req *request) ([]byte, error) {
	c.mu.Lock()
	if c.validating {
		p := &pendingRequest{ctx: ctx, req: req, done: make(chan result, 1)}
		c.queue = append(c.queue, p)
		c.mu.Unlock()

		select {
		case r := <-p.done:
			return r.body, r.err
		case <-ctx.Done():
			return nil, apperrors.Normalize(ctx.Err())
		}
	}
	c.validating = true
	validator := c.validator
	c.mu.Unlock()

	sessionID := c.store.SessionID(context.WithoutCancel(ctx))
	if sessionID != "" && c.validate(ctx, validator, sessionID) {
		c.logger.Debug().Str("session", utils.ShortID(sessionID)).Msg("session still valid, replaying requests")
		body, err := c.replay(ctx, req)
		c.drain(func(p *pendingRequest) result {
			b, e := c.replay(p.ctx, p.req)
			return result{body: b, err: e}
		})
		return body, err
	}

	if sessionID != "" {
		c.logger.Info().Str("session", utils.ShortID(sessionID)).Msg("session rejected by identity service, logging out")
		if err := c.store.ClearSession(context.WithoutCancel(ctx)); err != nil {
			c.logger.Err(err).Msg("clearing rejected session from the client store")
		}
	} else {
		c.logger.Info().Msg("request rejected without a stored session, logging out")
	}
	// listeners may hold a session the store no longer has
	c.notifySessionLost()
	c.drain(func(*pendingRequest) result {
		return result{err: apperrors.Unauthenticated(nil)}
	})
	return nil, apperrors.Unauthenticated(nil)
}

func (c *Coordinator) validate(ctx context.Context, validator SessionValidator, sessionID string) bool {
	if validator == nil {
		return false
	}
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.validationTimeout)
	defer cancel()
	return validator.Validate(vctx, sessionID)
}

// drain resolves queued requests in arrival order, including requests queued
// while draining, and ends the cycle once the queue is empty.
func (c *Coordinator) drain(resolve func(*pendingRequest) result) {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.validating = false
			c.queue = nil
			c.mu.Unlock()
			return
		}
		p := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		p.done <- resolve(p)
	}
}

// replay sends req once more. A second 401 is final.
func (c *Coordinator) replay(ctx context.Context, req *request) ([]byte, error) {
	retry := req.replay()
	resp, err := c.send(ctx, retry)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized {
		e := apperrors.FromResponse(resp.status, resp.body, "")
		return nil, apperrors.Unauthenticated(e)
	}
	return resp.result(retry)
}

func (c *Coordinator) notifySessionLost() {
	c.listenersMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Coordinator) send(ctx context.Context, req *request) (*response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, apperrors.Normalize(apperrors.Wrapf(err, "[transport] build %s %s", req.method, req.path))
	}
	c.decorate(ctx, httpReq, req)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", req.method).Str("path", req.path).Msg("request failed")
		return nil, apperrors.Normalize(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Normalize(err)
	}
	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Bool("retried", req.retried).
		Msg("identity service response")
	return &response{status: resp.StatusCode, body: data}, nil
}

func (c *Coordinator) decorate(ctx context.Context, httpReq *http.Request, req *request) {
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(HeaderRequestID, uuid.New().String())
	httpReq.Header.Set(HeaderRequestTimestamp, c.nowFunc().UTC().Format(time.RFC3339))

	deviceHeader, deviceID := c.device(ctx)
	if deviceHeader != "" {
		httpReq.Header.Set(HeaderDeviceInfo, deviceHeader)
	}
	if deviceID != "" {
		httpReq.Header.Set(HeaderDeviceFingerprint, deviceID)
	}

	if req.skipAuth {
		return
	}
	if token, err := SessionTokenSource(ctx, c.store).Token(); err == nil {
		token.SetAuthHeader(httpReq)
	}
}

func (c *Coordinator) device(ctx context.Context) (string, string) {
	c.deviceOnce.Do(func() {
		c.deviceID = c.store.DeviceID(ctx)
		header, err := NewDeviceInfo(c.deviceID, c.deviceName, c.userAgent).Header()
		if err != nil {
			c.logger.Err(err).Msg("encoding device info")
			return
		}
		c.deviceHeader = header
	})
	return c.deviceHeader, c.deviceID
}
