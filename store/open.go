package store

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-session/internal/config"
)

// Open builds the Repo selected by the configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Repo, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreBackendFile:
		return NewFileRepo(cfg.GetStorePath())
	case config.StoreBackendRedis:
		return OpenRedis(ctx, cfg.GetRedisURL())
	case config.StoreBackendMemory:
		return NewMemoryRepo(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.GetStoreBackend())
}
