package config

import (
	"os"
	"path/filepath"
)

const (
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStorePath() string
	GetRedisURL() string
	GetStoreNamespace() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return GetEnv("STORE_BACKEND", StoreBackendFile)
}

func (Store) GetStorePath() string {
	if p := os.Getenv("STORE_PATH"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "go-auth-session", "store.json")
}

func (Store) GetRedisURL() string {
	return GetEnv("REDIS_URL", "redis://localhost:6379/0")
}

// GetStoreNamespace prefixes every key, the equivalent of a browser origin.
func (Store) GetStoreNamespace() string {
	return GetEnv("STORE_NAMESPACE", "default")
}
