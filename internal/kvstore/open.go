package kvstore

import (
	"context"
	"fmt"

	"github.com/morningdash/morningdash/internal/database"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend    string
	SQLitePath string
	Redis      RedisConfig
	Postgres   database.Config
}

// Open creates the Store named by cfg.Backend. An empty backend means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil

	case BackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil

	case BackendRedis:
		store := NewRedis(cfg.Redis)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, nil

	case BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
