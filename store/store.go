// Package store provides the key-value backends a savegame.Store can be
// served from: process memory, a local sqlite file or postgres.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jianghu-lite/internal/config"
	"jianghu-lite/savegame"
)

const (
	defaultLocalDBName = "jianghu_local.db"
	defaultTimeout     = 3 * time.Second
)

// Store is a closable savegame.Store.
type Store interface {
	savegame.Store
	Close() error
}

type memoryStore struct {
	*savegame.MemoryStore
}

func (memoryStore) Close() error { return nil }

// NewMemory returns an in-process store.
func NewMemory() Store {
	return memoryStore{savegame.NewMemoryStore()}
}

// NewFromConfig opens the backend named by cfg.Store and reports the mode
// it settled on.
func NewFromConfig(cfg config.Config) (Store, string, error) {
	mode, err := config.NormalizeStoreMode(cfg.Store)
	if err != nil {
		return nil, mode, err
	}
	switch mode {
	case config.StoreMemory:
		return NewMemory(), mode, nil
	case config.StoreSQLite:
		path := cfg.SQLitePath
		if path == "" {
			if path, err = defaultSQLitePath(); err != nil {
				return nil, mode, err
			}
		}
		st, err := NewSQLite(path, cfg.StoreTimeout)
		return st, mode, err
	case config.StorePostgres:
		st, err := NewPostgres(cfg.DSN(), cfg.StoreTimeout)
		return st, mode, err
	}
	return nil, mode, fmt.Errorf("unsupported store mode %q", mode)
}

func defaultSQLitePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "jianghu-lite", defaultLocalDBName), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
