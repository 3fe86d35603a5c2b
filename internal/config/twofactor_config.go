package config

import "time"

type TwoFactorConfig interface {
	GetTwoFactorTTL() time.Duration
	GetTwoFactorTick() time.Duration
}

type TwoFactor struct{}

var _ TwoFactorConfig = TwoFactor{}

// GetTwoFactorTTL is the challenge lifetime used when the service omits expires_in.
func (TwoFactor) GetTwoFactorTTL() time.Duration {
	return GetEnvDuration("TWO_FACTOR_TTL", 600*time.Second)
}

func (TwoFactor) GetTwoFactorTick() time.Duration {
	return GetEnvDuration("TWO_FACTOR_TICK", time.Second)
}
