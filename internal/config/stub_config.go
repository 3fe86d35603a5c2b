package config

import (
	"strings"
	"time"
)

// StubConfig configures the local stub identity service.
type StubConfig interface {
	GetSigningSecret() string
	GetPreviousSigningSecrets() []string
	GetSessionTTL() time.Duration
	GetRememberMeSessionTTL() time.Duration
	GetTempSessionTTL() time.Duration
	GetDemoPassword() string
	GetRevocationRedisURL() string
}

type Stub struct{}

var _ StubConfig = Stub{}

func (Stub) GetSigningSecret() string {
	return GetEnv("STUB_SIGNING_SECRET", "dev-only-signing-secret")
}

// GetPreviousSigningSecrets lists retired secrets, comma separated, whose
// session ids are still accepted until they expire.
func (Stub) GetPreviousSigningSecrets() []string {
	var secrets []string
	for _, s := range strings.Split(GetEnv("STUB_PREVIOUS_SIGNING_SECRETS", ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

func (Stub) GetSessionTTL() time.Duration {
	return GetEnvDuration("STUB_SESSION_TTL", 24*time.Hour)
}

func (Stub) GetRememberMeSessionTTL() time.Duration {
	return GetEnvDuration("STUB_REMEMBER_ME_TTL", 30*24*time.Hour)
}

func (Stub) GetTempSessionTTL() time.Duration {
	return GetEnvDuration("STUB_TEMP_SESSION_TTL", 600*time.Second)
}

// GetDemoPassword is the password given to the seeded demo accounts. Empty
// means one is generated at start up.
func (Stub) GetDemoPassword() string {
	return GetEnv("STUB_DEMO_PASSWORD", "")
}

// GetRevocationRedisURL points the stub at Redis for logged out sessions.
// Empty keeps them in memory.
func (Stub) GetRevocationRedisURL() string {
	return GetEnv("STUB_REVOCATION_REDIS_URL", "")
}
