package storage

import (
	"fmt"

	"go.uber.org/zap"

	"library-circulation/config"
	"library-circulation/library"
)

// Backend is a library.Store that holds resources until closed.
type Backend interface {
	library.Store
	Close() error
}

// Open returns the backend named by cfg.Storage.Backend.
func Open(cfg *config.Config, log *zap.Logger) (Backend, error) {
	return OpenBackend(cfg, cfg.Storage.Backend, log)
}

// OpenBackend returns the named backend using cfg for its locations.
func OpenBackend(cfg *config.Config, name string, log *zap.Logger) (Backend, error) {
	switch name {
	case config.BackendText:
		return NewTextStore(cfg.DataDir, log), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath(), log)
	}
	return nil, fmt.Errorf("unknown storage backend %q", name)
}
