package config

import (
	"strings"
	"time"
)

type TransportConfig interface {
	GetIdentityBaseURL() string
	GetHTTPTimeout() time.Duration
	GetValidationTimeout() time.Duration
	GetDeviceName() string
	GetUserAgent() string
}

type Transport struct{}

var _ TransportConfig = Transport{}

func (Transport) GetIdentityBaseURL() string {
	return strings.TrimRight(GetEnv("IDENTITY_BASE_URL", "http://localhost:8090"), "/")
}

func (Transport) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("HTTP_TIMEOUT", 30*time.Second)
}

// GetValidationTimeout bounds a session validation call. Validation is never
// cancelled by the caller, so this is the only thing that ends a stuck call.
func (Transport) GetValidationTimeout() time.Duration {
	return GetEnvDuration("VALIDATION_TIMEOUT", 10*time.Second)
}

func (Transport) GetDeviceName() string {
	return GetEnv("DEVICE_NAME", "")
}

func (Transport) GetUserAgent() string {
	return GetEnv("USER_AGENT", "go-auth-session/1.0")
}
