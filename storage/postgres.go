package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/giygas/pn-calculator/interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ interfaces.BlobStore = (*PostgresBlobStore)(nil)

// MigrationBlobs creates the blob table. Safe to run on every start.
const MigrationBlobs = `
CREATE TABLE IF NOT EXISTS pn_blobs (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// pgRow is the part of pgx.Row the store needs
type pgRow interface {
	Scan(dest ...any) error
}

// pgConn is the part of *pgxpool.Pool the store needs; tests pass a fake
type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgRow
	Exec(ctx context.Context, sql string, args ...any) error
	Ping(ctx context.Context) error
	Close()
}

type poolConn struct {
	pool *pgxpool.Pool
}

func (p *poolConn) QueryRow(ctx context.Context, sql string, args ...any) pgRow {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *poolConn) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *poolConn) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *poolConn) Close() { p.pool.Close() }

// PostgresBlobStore keeps blobs in the pn_blobs table
type PostgresBlobStore struct {
	db pgConn
}

// NewPostgresBlobStore connects to databaseURL, checks the connection and
// runs the table migration
func NewPostgresBlobStore(ctx context.Context, databaseURL string, maxConns int32) (*PostgresBlobStore, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres storage: DATABASE_URL not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := newPostgresBlobStore(&poolConn{pool: pool})
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresBlobStore(db pgConn) *PostgresBlobStore {
	return &PostgresBlobStore{db: db}
}

// Migrate creates the blob table if it does not exist
func (s *PostgresBlobStore) Migrate(ctx context.Context) error {
	if err := s.db.Exec(ctx, MigrationBlobs); err != nil {
		return fmt.Errorf("migrate pn_blobs: %w", err)
	}
	return nil
}

func (s *PostgresBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM pn_blobs WHERE key = $1`

	var data []byte
	if err := s.db.QueryRow(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return data, nil
}

func (s *PostgresBlobStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	const query = `INSERT INTO pn_blobs (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value,
                                updated_at = EXCLUDED.updated_at`

	if err := s.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	return nil
}

func (s *PostgresBlobStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM pn_blobs WHERE key = $1`
	if err := s.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func (s *PostgresBlobStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresBlobStore) Name() string { return BackendPostgres }

func (s *PostgresBlobStore) Close() error {
	s.db.Close()
	return nil
}
