package cache

import (
	"fmt"

	"github.com/go2web/go2web/internal/config"
	"github.com/go2web/go2web/internal/storage"
)

// NewBackend creates the backend selected by cfg.
func NewBackend(cfg config.CacheConfig) (Backend, error) {
	switch cfg.Backend {
	case config.CacheJSON:
		return NewJSONBackend(cfg.Path), nil
	case config.CacheSQLite3:
		return NewSQLiteBackend(storage.DriverCgo, cfg.Path)
	case config.CacheSQLitePure:
		return NewSQLiteBackend(storage.DriverPure, cfg.Path)
	case config.CacheLevelDB:
		return NewLevelDBBackend(cfg.Path)
	case config.CacheMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Open creates a store over the configured backend and loads it.
func Open(cfg config.CacheConfig) (*Store, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	store := NewStore(backend)
	if err := store.Load(); err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}
