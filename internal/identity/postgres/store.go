// Package postgres provides a PostgreSQL-backed implementation of
// [identity.Store]. Face encodings live in a pgvector column; nearest
// lookups use the cosine distance operator backed by an HNSW index.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/roomguard/internal/identity"
)

// ddl returns the identity DDL with the encoding dimension substituted.
// The vector dimension is baked into the column type at schema creation
// time.
func ddl(encodingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS identities (
    id           TEXT         PRIMARY KEY,
    name         TEXT         NOT NULL,
    base_trust   DOUBLE PRECISION NOT NULL,
    enrolled_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    last_seen_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS face_encodings (
    id          BIGSERIAL    PRIMARY KEY,
    identity_id TEXT         NOT NULL REFERENCES identities (id) ON DELETE CASCADE,
    encoding    vector(%d)   NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_face_encodings_identity
    ON face_encodings (identity_id);

CREATE INDEX IF NOT EXISTS idx_face_encodings_encoding
    ON face_encodings USING hnsw (encoding vector_cosine_ops);
`, encodingDimensions)
}

// Compile-time interface check.
var _ identity.Store = (*Store)(nil)

// Store persists identities and encodings in PostgreSQL. All operations
// are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn,
// registers pgvector types on every connection, and runs [Migrate].
//
// encodingDimensions must match the face encoding model in use (e.g. 128
// for dlib-style encodings). Changing it after the first migration
// requires a manual schema change.
func NewStore(ctx context.Context, dsn string, encodingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("identity store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("identity store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("identity store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, encodingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("identity store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the identity tables if they do not exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, encodingDimensions int) error {
	if _, err := pool.Exec(ctx, ddl(encodingDimensions)); err != nil {
		return fmt.Errorf("identity migrate: %w", err)
	}
	return nil
}

// Enroll implements identity.Store.
func (s *Store) Enroll(ctx context.Context, id identity.Identity, encodings [][]float32) error {
	if len(encodings) == 0 {
		return fmt.Errorf("identity store: enroll %q: at least one encoding required", id.ID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("identity store: begin enroll: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO identities (id, name, base_trust, enrolled_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $4)`,
		id.ID, id.Name, id.BaseTrust, id.EnrolledAt)
	if err != nil {
		return fmt.Errorf("identity store: insert identity %q: %w", id.ID, err)
	}

	for _, enc := range encodings {
		_, err = tx.Exec(ctx, `
			INSERT INTO face_encodings (identity_id, encoding) VALUES ($1, $2)`,
			id.ID, pgvector.NewVector(enc))
		if err != nil {
			return fmt.Errorf("identity store: insert encoding for %q: %w", id.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("identity store: commit enroll: %w", err)
	}
	return nil
}

// AddEncoding implements identity.Store.
func (s *Store) AddEncoding(ctx context.Context, identityID string, encoding []float32) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO face_encodings (identity_id, encoding)
		SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM identities WHERE id = $1)`,
		identityID, pgvector.NewVector(encoding))
	if err != nil {
		return fmt.Errorf("identity store: add encoding for %q: %w", identityID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity store: add encoding for %q: %w", identityID, identity.ErrNotFound)
	}
	return nil
}

// Get implements identity.Store.
func (s *Store) Get(ctx context.Context, identityID string) (identity.Identity, error) {
	var id identity.Identity
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, base_trust, enrolled_at, last_seen_at
		FROM identities WHERE id = $1`, identityID).
		Scan(&id.ID, &id.Name, &id.BaseTrust, &id.EnrolledAt, &id.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("identity store: get %q: %w", identityID, err)
	}
	return id, nil
}

// List implements identity.Store.
func (s *Store) List(ctx context.Context) ([]identity.Identity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, base_trust, enrolled_at, last_seen_at
		FROM identities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("identity store: list: %w", err)
	}
	defer rows.Close()

	var out []identity.Identity
	for rows.Next() {
		var id identity.Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.BaseTrust, &id.EnrolledAt, &id.LastSeenAt); err != nil {
			return nil, fmt.Errorf("identity store: scan identity: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("identity store: iterate identities: %w", err)
	}
	return out, nil
}

// UpdateLastSeen implements identity.Store.
func (s *Store) UpdateLastSeen(ctx context.Context, identityID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE identities SET last_seen_at = $2 WHERE id = $1`, identityID, at)
	if err != nil {
		return fmt.Errorf("identity store: update last seen for %q: %w", identityID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity store: update last seen for %q: %w", identityID, identity.ErrNotFound)
	}
	return nil
}

// Nearest implements identity.Store.
func (s *Store) Nearest(ctx context.Context, encoding []float32) (identity.Match, error) {
	var m identity.Match
	err := s.pool.QueryRow(ctx, `
		SELECT i.id, i.name, i.base_trust, i.enrolled_at, i.last_seen_at,
		       e.encoding <=> $1 AS distance
		FROM face_encodings e
		JOIN identities i ON i.id = e.identity_id
		ORDER BY distance
		LIMIT 1`, pgvector.NewVector(encoding)).
		Scan(&m.Identity.ID, &m.Identity.Name, &m.Identity.BaseTrust,
			&m.Identity.EnrolledAt, &m.Identity.LastSeenAt, &m.Distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Match{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Match{}, fmt.Errorf("identity store: nearest lookup: %w", err)
	}
	return m, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
