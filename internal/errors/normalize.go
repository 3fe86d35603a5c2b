package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Normalize converts any error into an *Error. Errors that are already
// normalized pass through; context cancellation, timeouts and every transport
// level failure become KindNetwork; anything else is a KindService error.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if isTransportFailure(err) {
		return &Error{Kind: KindNetwork, Message: FallbackMessage(KindNetwork), Internal: err}
	}
	return &Error{Kind: KindService, Message: FallbackMessage(KindService), Internal: err}
}

func isTransportFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// FromResponse normalizes a non-2xx response. rejection is the Kind a 4xx
// rejection maps to for the endpoint that was called (for example
// KindInvalidCredentials for login); when empty, 401 maps to
// KindUnauthenticated and other statuses to KindService.
func FromResponse(status int, body []byte, rejection Kind) *Error {
	kind := KindService
	switch {
	case status >= 400 && status < 500 && rejection != "":
		kind = rejection
	case status == http.StatusUnauthorized:
		kind = KindUnauthenticated
	}
	e := New(kind, ServiceMessage(body))
	e.Status = status
	return e
}

// ServiceMessage extracts the human readable message from an Identity Service
// response body. It understands {"detail": {"message": ...}},
// {"detail": "..."}, {"message": ...} and {"error": ...}; it returns "" when
// none is present.
func ServiceMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) > 0 {
		var detailObj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Detail, &detailObj); err == nil && detailObj.Message != "" {
			return strings.TrimSpace(detailObj.Message)
		}
		var detailStr string
		if err := json.Unmarshal(envelope.Detail, &detailStr); err == nil && detailStr != "" {
			return strings.TrimSpace(detailStr)
		}
	}
	if envelope.Message != "" {
		return strings.TrimSpace(envelope.Message)
	}
	return strings.TrimSpace(envelope.Error)
}
