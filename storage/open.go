package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"

	"delayq/config"
)

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	if cfg.Backend != "composite" {
		return openBackend(ctx, cfg.Backend, cfg, cfg.DataDir)
	}

	content, err := openBackend(ctx, cfg.ContentBackend, cfg, filepath.Join(cfg.DataDir, "content"))
	if err != nil {
		return nil, err
	}
	if cfg.ContentBackend == cfg.IndexBackend && cfg.ContentBackend == "redis" {
		return NewCompositeStorage(content, content, cfg.ContentBackend, cfg.IndexBackend), nil
	}
	index, err := openBackend(ctx, cfg.IndexBackend, cfg, filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		_ = content.Close()
		return nil, err
	}
	return NewCompositeStorage(content, index, cfg.ContentBackend, cfg.IndexBackend), nil
}

func openBackend(ctx context.Context, backend string, cfg config.StorageConfig, dataDir string) (Storage, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "badger":
		opts := badger.DefaultOptions(dataDir).
			WithLogger(nil).
			WithLoggingLevel(badger.ERROR)
		return NewBadgerStorageWithOptions(opts, time.Duration(cfg.GCInterval)*time.Second)
	case "redis":
		return NewRedisStorage(ctx, RedisOptions{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: time.Duration(cfg.Redis.DialTimeoutMs) * time.Millisecond,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
