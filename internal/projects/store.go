package projects

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"kgraph/internal/apierr"
	"kgraph/internal/store"
)

// Store is the subset of internal/store.Store the projects row store needs.
type Store interface {
	Execute(ctx context.Context, sql string, args ...any) error
	FetchOne(ctx context.Context, sql string, args ...any) (store.Row, bool, error)
	FetchAll(ctx context.Context, sql string, args ...any) ([]store.Row, error)
}

// RowStore persists project metadata rows in Postgres.
type RowStore struct {
	db Store
}

func NewRowStore(db Store) *RowStore { return &RowStore{db: db} }

// EnsureSchema creates the projects table if it is absent, mirroring the
// teacher's boot-time CREATE TABLE IF NOT EXISTS pattern.
func (r *RowStore) EnsureSchema(ctx context.Context) error {
	return r.db.Execute(ctx, `
CREATE TABLE IF NOT EXISTS projects (
    id UUID PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    graph_name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    settings JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS projects_slug_idx ON projects(slug);
`)
}

func (r *RowStore) Insert(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return Project{}, apierr.Internal("marshal project settings", err)
	}
	row, ok, err := r.db.FetchOne(ctx, `
INSERT INTO projects (id, slug, name, graph_name, description, settings, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (slug) DO NOTHING
RETURNING id, slug, name, graph_name, description, settings, created_at, updated_at
`, p.ID, p.Slug, p.Name, p.GraphName, p.Description, settingsJSON, now)
	if err != nil {
		return Project{}, err
	}
	if !ok {
		return Project{}, apierr.Conflict("a project with slug " + p.Slug + " already exists")
	}
	return fromRow(row)
}

func (r *RowStore) GetBySlug(ctx context.Context, slug string) (Project, error) {
	row, ok, err := r.db.FetchOne(ctx, `
SELECT id, slug, name, graph_name, description, settings, created_at, updated_at
FROM projects WHERE slug = $1
`, slug)
	if err != nil {
		return Project{}, err
	}
	if !ok {
		return Project{}, apierr.NotFound("project not found: " + slug)
	}
	return fromRow(row)
}

func (r *RowStore) List(ctx context.Context) ([]Project, error) {
	rows, err := r.db.FetchAll(ctx, `
SELECT id, slug, name, graph_name, description, settings, created_at, updated_at
FROM projects ORDER BY name ASC
`)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RowStore) Delete(ctx context.Context, slug string) error {
	return r.db.Execute(ctx, `DELETE FROM projects WHERE slug = $1`, slug)
}

func fromRow(row store.Row) (Project, error) {
	p := Project{
		ID:          asString(row["id"]),
		Slug:        asString(row["slug"]),
		Name:        asString(row["name"]),
		GraphName:   asString(row["graph_name"]),
		Description: asString(row["description"]),
	}
	switch t := row["created_at"].(type) {
	case time.Time:
		p.CreatedAt = t
	}
	switch t := row["updated_at"].(type) {
	case time.Time:
		p.UpdatedAt = t
	}
	p.Settings = Settings{}
	switch v := row["settings"].(type) {
	case []byte:
		_ = json.Unmarshal(v, &p.Settings)
	case string:
		_ = json.Unmarshal([]byte(v), &p.Settings)
	case map[string]any:
		p.Settings = Settings(v)
	}
	return p, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
