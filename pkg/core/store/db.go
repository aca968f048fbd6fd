// Package store owns the process-wide Postgres connection pool shared by the
// analysis cache and the debate repo. The engine runs fine without it; every
// consumer degrades to in-memory or file-backed behavior when InitDB fails.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connMaxLifetime = time.Hour

var (
	mu      sync.Mutex
	pool    *pgxpool.Pool
	initErr error
	inited  bool
)

// InitDB connects the shared pool using DATABASE_URL and verifies the
// database is actually reachable. Idempotent: repeated calls return the first
// attempt's outcome, so a failed startup stays failed instead of flapping.
func InitDB(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if inited {
		return initErr
	}
	inited = true

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		initErr = fmt.Errorf("DATABASE_URL environment variable not set")
		return initErr
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		initErr = fmt.Errorf("failed to parse database config: %w", err)
		return initErr
	}
	cfg.MaxConnLifetime = connMaxLifetime

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		initErr = fmt.Errorf("failed to create connection pool: %w", err)
		return initErr
	}

	// pgxpool connects lazily; ping now so callers learn about a dead
	// database at startup and can fall back, not on the first cache write.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		initErr = fmt.Errorf("database unreachable: %w", err)
		return initErr
	}

	pool = p
	return nil
}

// GetPool returns the shared pool, or nil when the database is not configured.
func GetPool() *pgxpool.Pool {
	mu.Lock()
	defer mu.Unlock()
	return pool
}

// Close closes the pool on shutdown.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		pool.Close()
		pool = nil
	}
}
