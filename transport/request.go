package transport

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

type request struct {
	method    string
	path      string
	body      []byte // encoded once; replays send the same bytes
	header    http.Header
	skipAuth  bool
	rejection apperrors.Kind
	retried   bool
}

type RequestOption func(*request)

// WithSkipAuth sends the request without a bearer credential. A 401 on such a
// request never starts a validation cycle.
func WithSkipAuth() RequestOption {
	return func(r *request) {
		r.skipAuth = true
	}
}

// WithRejectionKind sets the error kind a 4xx response from this endpoint
// normalizes to, e.g. InvalidCredentials for login.
func WithRejectionKind(kind apperrors.Kind) RequestOption {
	return func(r *request) {
		r.rejection = kind
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

func newRequest(method, path string, body any, options []RequestOption) (*request, error) {
	r := &request{
		method: method,
		path:   path,
		header: make(http.Header),
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrapf(err, "[transport] encode %s %s body", method, path)
		}
		r.body = encoded
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// replay is the retried copy of r. Method, path, body and extra headers are shared.
func (r *request) replay() *request {
	c := *r
	c.retried = true
	return &c
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// result turns a response into the caller's return values.
func (r *response) result(req *request) ([]byte, error) {
	if r.ok() {
		return r.body, nil
	}
	return nil, apperrors.FromResponse(r.status, r.body, req.rejection)
}
