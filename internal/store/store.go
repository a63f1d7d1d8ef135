// Package store owns the bounded Postgres connection pool and the
// Apache AGE property-graph dialect plumbing shared by every other domain
// package. Nothing above this package talks to pgx directly.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kgraph/internal/apierr"
)

// Row is a single result row addressed by column name, the shape every
// fetch method returns instead of a typed struct.
type Row map[string]any

// Store wraps a pgxpool.Pool with row-dict fetch helpers and the
// named-graph Cypher execution path.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses dsn, builds a bounded pool (2-10 connections, mirroring the
// teacher's conservative pool defaults) and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apierr.Internal("parse postgres dsn", err)
	}
	cfg.MinConns = 2
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apierr.UpstreamHard("connect to postgres", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, apierr.UpstreamHard("ping postgres", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool. Safe to call once at shutdown.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying pool for callers (e.g. the snapshot table
// migration) that need raw access without going through the dict helpers.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Execute runs a statement that returns no rows.
func (s *Store) Execute(ctx context.Context, sql string, args ...any) error {
	_, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return apierr.UpstreamHard("execute statement", err)
	}
	return nil
}

// FetchOne runs a query and returns its first row, or ok=false if empty.
func (s *Store) FetchOne(ctx context.Context, sql string, args ...any) (row Row, ok bool, err error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, false, apierr.UpstreamHard("fetch one", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	row, err = rowToDict(rows)
	if err != nil {
		return nil, false, apierr.UpstreamHard("decode row", err)
	}
	return row, true, rows.Err()
}

// FetchAll runs a query and returns every row as a dict.
func (s *Store) FetchAll(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apierr.UpstreamHard("fetch all", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := rowToDict(rows)
		if err != nil {
			return nil, apierr.UpstreamHard("decode row", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func rowToDict(rows pgx.Rows) (Row, error) {
	fields := rows.FieldDescriptions()
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	row := make(Row, len(fields))
	for i, f := range fields {
		row[string(f.Name)] = values[i]
	}
	return row, nil
}
