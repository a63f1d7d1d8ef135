// Package telemetry sinks search and ingestion analytics into ClickHouse:
// one append-only events table, created on boot if absent. Telemetry is a
// pure observability side-channel — a write failure is logged and never
// affects the request that triggered it.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"kgraph/internal/config"
	"kgraph/internal/logging"
)

// Sink writes analytics rows to ClickHouse. A nil *Sink (ClickHouse not
// configured) is a valid zero value: Record becomes a no-op.
type Sink struct {
	conn clickhouse.Conn
}

// Event is one recorded analytics row: a search or an ingestion outcome.
type Event struct {
	Kind       string // "search" or "ingestion"
	Project    string
	DurationMS int64
	ResultOrEntityCount int
	Mode       string // search mode, or "" for ingestion
	OccurredAt time.Time
}

// Open builds a Sink and ensures its table exists; returns (nil, nil) when
// ClickHouse is not configured.
func Open(ctx context.Context, cfg config.ClickHouseConfig) (*Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Exec(ctxTimeout, `
CREATE TABLE IF NOT EXISTS kgraph_events (
    kind String,
    project String,
    duration_ms Int64,
    count UInt32,
    mode String,
    occurred_at DateTime
) ENGINE = MergeTree()
ORDER BY (kind, occurred_at)
`); err != nil {
		return nil, fmt.Errorf("ensure kgraph_events table: %w", err)
	}
	return &Sink{conn: conn}, nil
}

// Record inserts one analytics row. Failures are logged, not returned: no
// caller's request should fail because the analytics sink is unavailable.
func (s *Sink) Record(ctx context.Context, e Event) {
	if s == nil || s.conn == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := s.conn.Exec(ctx, `
INSERT INTO kgraph_events (kind, project, duration_ms, count, mode, occurred_at)
VALUES (?, ?, ?, ?, ?, ?)
`, e.Kind, e.Project, e.DurationMS, uint32(e.ResultOrEntityCount), e.Mode, e.OccurredAt); err != nil {
		logging.Log.WithError(err).WithField("kind", e.Kind).Warn("telemetry insert failed")
	}
}

func (s *Sink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
