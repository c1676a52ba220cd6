// Package postgres provides a PostgreSQL-backed implementation of
// [trust.Store].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/roomguard/internal/trust"
)

const ddlTrustRecords = `
CREATE TABLE IF NOT EXISTS trust_records (
    identity_id  TEXT         PRIMARY KEY,
    base_score   DOUBLE PRECISION NOT NULL,
    interactions JSONB        NOT NULL DEFAULT '[]',
    last_seen    TIMESTAMPTZ  NOT NULL,
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_trust_records_last_seen
    ON trust_records (last_seen);
`

// Compile-time interface check.
var _ trust.Store = (*Store)(nil)

// Store persists trust records in PostgreSQL. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the trust schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("trust store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("trust store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("trust store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool without running migrations,
// for callers sharing one pool across stores.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the trust tables if they do not exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTrustRecords); err != nil {
		return fmt.Errorf("trust migrate: %w", err)
	}
	return nil
}

// Load implements trust.Store.
func (s *Store) Load(ctx context.Context) ([]trust.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identity_id, base_score, interactions, last_seen, updated_at
		FROM trust_records`)
	if err != nil {
		return nil, fmt.Errorf("trust store: query records: %w", err)
	}
	defer rows.Close()

	var out []trust.Record
	for rows.Next() {
		var rec trust.Record
		var raw []byte
		if err := rows.Scan(&rec.IdentityID, &rec.BaseScore, &raw, &rec.LastSeen, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("trust store: scan record: %w", err)
		}
		if err := json.Unmarshal(raw, &rec.Interactions); err != nil {
			return nil, fmt.Errorf("trust store: decode interactions for %q: %w", rec.IdentityID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trust store: iterate records: %w", err)
	}
	return out, nil
}

// Save implements trust.Store.
func (s *Store) Save(ctx context.Context, rec trust.Record) error {
	raw, err := json.Marshal(rec.Interactions)
	if err != nil {
		return fmt.Errorf("trust store: encode interactions for %q: %w", rec.IdentityID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO trust_records (identity_id, base_score, interactions, last_seen, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_id) DO UPDATE SET
			base_score   = EXCLUDED.base_score,
			interactions = EXCLUDED.interactions,
			last_seen    = EXCLUDED.last_seen,
			updated_at   = EXCLUDED.updated_at`,
		rec.IdentityID, rec.BaseScore, raw, rec.LastSeen, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("trust store: upsert %q: %w", rec.IdentityID, err)
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
