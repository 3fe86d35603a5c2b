package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	TransportConfig
	TwoFactorConfig
	StoreConfig
	StubConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetPort() string
	GetLogLevel() string
	GetLogFormat() string
}

type mainConfig struct {
	EnvVars
	Transport
	TwoFactor
	Store
	Stub
}

func New() Config {
	return mainConfig{}
}

// Load reads the given .env files (".env" when none are given) into the process
// environment and returns the environment backed Config. Missing files are not
// an error; values already present in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return New(), nil
}
