package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"kgraph/internal/apierr"
	"kgraph/internal/store"
)

// DB is the subset of internal/store.Store the snapshot row store needs.
type DB interface {
	Execute(ctx context.Context, sql string, args ...any) error
	FetchOne(ctx context.Context, sql string, args ...any) (store.Row, bool, error)
	FetchAll(ctx context.Context, sql string, args ...any) ([]store.Row, error)
}

// RowStore persists snapshot rows in Postgres.
type RowStore struct {
	db DB
}

func NewRowStore(db DB) *RowStore { return &RowStore{db: db} }

// EnsureSchema creates the snapshots table if absent, indexed by
// (project_id, created_at desc) per spec §4.8.
func (r *RowStore) EnsureSchema(ctx context.Context) error {
	return r.db.Execute(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    trigger TEXT NOT NULL,
    graph_data JSONB NOT NULL,
    entity_count INTEGER NOT NULL DEFAULT 0,
    relationship_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS snapshots_project_created_idx ON snapshots(project_id, created_at DESC);
`)
}

func (r *RowStore) Insert(ctx context.Context, s Snapshot) (Snapshot, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	blob, err := json.Marshal(s.GraphData)
	if err != nil {
		return Snapshot{}, apierr.Internal("marshal snapshot graph data", err)
	}
	row, ok, err := r.db.FetchOne(ctx, `
INSERT INTO snapshots (id, project_id, label, trigger, graph_data, entity_count, relationship_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, project_id, label, trigger, entity_count, relationship_count, created_at
`, s.ID, s.ProjectID, s.Label, string(s.Trigger), blob, s.EntityCount, s.RelationshipCount, now)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return Snapshot{}, apierr.Internal("snapshot insert returned no row", nil)
	}
	out, err := summaryFromRow(row)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID: out.ID, ProjectID: out.ProjectID, Label: out.Label, Trigger: out.Trigger,
		GraphData: s.GraphData, EntityCount: out.EntityCount, RelationshipCount: out.RelationshipCount,
		CreatedAt: out.CreatedAt,
	}, nil
}

// List returns the newest-first summary view (no graph_data blob) for a project.
func (r *RowStore) List(ctx context.Context, projectID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.FetchAll(ctx, `
SELECT id, project_id, label, trigger, entity_count, relationship_count, created_at
FROM snapshots WHERE project_id = $1
ORDER BY created_at DESC
LIMIT $2
`, projectID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		s, err := summaryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Get fetches one snapshot including its graph_data blob.
func (r *RowStore) Get(ctx context.Context, id string) (Snapshot, error) {
	row, ok, err := r.db.FetchOne(ctx, `
SELECT id, project_id, label, trigger, graph_data, entity_count, relationship_count, created_at
FROM snapshots WHERE id = $1
`, id)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return Snapshot{}, apierr.NotFound("snapshot not found: " + id)
	}
	s, err := summaryFromRow(row)
	if err != nil {
		return Snapshot{}, err
	}
	var data GraphData
	switch v := row["graph_data"].(type) {
	case []byte:
		_ = json.Unmarshal(v, &data)
	case string:
		_ = json.Unmarshal([]byte(v), &data)
	}
	return Snapshot{
		ID: s.ID, ProjectID: s.ProjectID, Label: s.Label, Trigger: s.Trigger,
		GraphData: data, EntityCount: s.EntityCount, RelationshipCount: s.RelationshipCount, CreatedAt: s.CreatedAt,
	}, nil
}

func (r *RowStore) Delete(ctx context.Context, id string) error {
	return r.db.Execute(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
}

// PruneBeyondRetention deletes every snapshot for a project past the
// retention limit, ordered oldest-first among the overflow.
func (r *RowStore) PruneBeyondRetention(ctx context.Context, projectID string, keep int) error {
	return r.db.Execute(ctx, `
DELETE FROM snapshots
WHERE project_id = $1 AND id NOT IN (
    SELECT id FROM snapshots WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2
)
`, projectID, keep)
}

func summaryFromRow(row store.Row) (Summary, error) {
	s := Summary{
		ID:        asString(row["id"]),
		ProjectID: asString(row["project_id"]),
		Label:     asString(row["label"]),
		Trigger:   Trigger(asString(row["trigger"])),
	}
	s.EntityCount = int(asInt64(row["entity_count"]))
	s.RelationshipCount = int(asInt64(row["relationship_count"]))
	if t, ok := row["created_at"].(time.Time); ok {
		s.CreatedAt = t
	}
	return s, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
