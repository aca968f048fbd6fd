package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists cache entries in the analysis_results table keyed by
// fingerprint. Results are stored as JSONB so schema evolution on the result
// side never needs a migration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ BackingStore = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the analysis_results table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_results (
			fingerprint TEXT PRIMARY KEY,
			result JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure analysis_results schema: %w", err)
	}
	return nil
}

// Load fetches one entry by fingerprint. A missing row is a miss, not an error.
func (s *PostgresStore) Load(ctx context.Context, fingerprint string) (*Entry, error) {
	query := `
		SELECT result, expires_at
		FROM analysis_results
		WHERE fingerprint = $1
		LIMIT 1
	`
	var resultJSON []byte
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(&resultJSON, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}

	entry := &Entry{Fingerprint: fingerprint, ExpiresAt: expiresAt}
	if err := json.Unmarshal(resultJSON, &entry.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return entry, nil
}

// Store upserts an entry. A later Put with overwrite wins.
func (s *PostgresStore) Store(ctx context.Context, entry Entry) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO analysis_results (fingerprint, result, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint)
		DO UPDATE SET result = EXCLUDED.result, expires_at = EXCLUDED.expires_at
	`
	if _, err := s.pool.Exec(ctx, query, entry.Fingerprint, resultJSON, entry.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}
