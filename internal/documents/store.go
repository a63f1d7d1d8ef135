package documents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"kgraph/internal/apierr"
	"kgraph/internal/store"
)

// DB is the subset of internal/store.Store the document row store needs.
type DB interface {
	Execute(ctx context.Context, sql string, args ...any) error
	FetchOne(ctx context.Context, sql string, args ...any) (store.Row, bool, error)
	FetchAll(ctx context.Context, sql string, args ...any) ([]store.Row, error)
}

// RowStore persists documents and chunks in Postgres.
type RowStore struct {
	db DB
}

func NewRowStore(db DB) *RowStore { return &RowStore{db: db} }

// EnsureSchema creates the documents and chunks tables if absent.
func (r *RowStore) EnsureSchema(ctx context.Context) error {
	return r.db.Execute(ctx, `
CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    project_id UUID NOT NULL,
    filename TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL,
    source_url TEXT NOT NULL DEFAULT '',
    raw_content TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    processed_at TIMESTAMPTZ,
    error_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_project_idx ON documents(project_id);

CREATE TABLE IF NOT EXISTS chunks (
    id UUID PRIMARY KEY,
    document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    token_count INTEGER NOT NULL,
    vector_point_id TEXT NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id);
`)
}

func (r *RowStore) Insert(ctx context.Context, d Document) (Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()
	if d.Metadata == nil {
		d.Metadata = Metadata{}
	}
	metaJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return Document{}, apierr.Internal("marshal document metadata", err)
	}
	row, ok, err := r.db.FetchOne(ctx, `
INSERT INTO documents (id, project_id, filename, content_type, source_url, raw_content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, project_id, filename, content_type, source_url, raw_content, metadata,
          processed, processed_at, error_message, created_at
`, d.ID, d.ProjectID, d.Filename, string(d.ContentType), d.SourceURL, d.RawContent, metaJSON, d.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, apierr.Internal("insert document returned no row", nil)
	}
	return documentFromRow(row)
}

func (r *RowStore) Get(ctx context.Context, projectID, id string) (Document, error) {
	row, ok, err := r.db.FetchOne(ctx, `
SELECT id, project_id, filename, content_type, source_url, raw_content, metadata,
       processed, processed_at, error_message, created_at
FROM documents WHERE project_id = $1 AND id = $2
`, projectID, id)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, apierr.NotFound("document not found: " + id)
	}
	return documentFromRow(row)
}

func (r *RowStore) List(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := r.db.FetchAll(ctx, `
SELECT id, project_id, filename, content_type, source_url, raw_content, metadata,
       processed, processed_at, error_message, created_at
FROM documents WHERE project_id = $1 ORDER BY created_at DESC
`, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		d, err := documentFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *RowStore) Delete(ctx context.Context, projectID, id string) error {
	return r.db.Execute(ctx, `DELETE FROM documents WHERE project_id = $1 AND id = $2`, projectID, id)
}

func (r *RowStore) DeleteAllForProject(ctx context.Context, projectID string) error {
	return r.db.Execute(ctx, `DELETE FROM documents WHERE project_id = $1`, projectID)
}

// MarkProcessed updates processed/processed_at/error_message after a
// (successful or failed) ingestion run.
func (r *RowStore) MarkProcessed(ctx context.Context, id string, errMsg string) error {
	if errMsg != "" {
		return r.db.Execute(ctx, `UPDATE documents SET processed = TRUE, processed_at = NOW(), error_message = $2 WHERE id = $1`, id, errMsg)
	}
	return r.db.Execute(ctx, `UPDATE documents SET processed = TRUE, processed_at = NOW(), error_message = '' WHERE id = $1`, id)
}

// SetError records an error_message on the document without marking it
// processed, for earlier-phase failures (e.g. fetch/chunk errors).
func (r *RowStore) SetError(ctx context.Context, id string, errMsg string) error {
	return r.db.Execute(ctx, `UPDATE documents SET error_message = $2 WHERE id = $1`, id, errMsg)
}

// SetRawContent overwrites raw_content, used once a source_url document's
// content has been resolved by internal/fetch.
func (r *RowStore) SetRawContent(ctx context.Context, id, rawContent string) error {
	return r.db.Execute(ctx, `UPDATE documents SET raw_content = $2 WHERE id = $1`, id, rawContent)
}

func documentFromRow(row store.Row) (Document, error) {
	d := Document{
		ID:           asString(row["id"]),
		ProjectID:    asString(row["project_id"]),
		Filename:     asString(row["filename"]),
		ContentType:  ContentType(asString(row["content_type"])),
		SourceURL:    asString(row["source_url"]),
		RawContent:   asString(row["raw_content"]),
		Processed:    asBool(row["processed"]),
		ErrorMessage: asString(row["error_message"]),
	}
	if t, ok := row["created_at"].(time.Time); ok {
		d.CreatedAt = t
	}
	if t, ok := row["processed_at"].(time.Time); ok {
		d.ProcessedAt = &t
	}
	d.Metadata = Metadata{}
	switch v := row["metadata"].(type) {
	case []byte:
		_ = json.Unmarshal(v, &d.Metadata)
	case string:
		_ = json.Unmarshal([]byte(v), &d.Metadata)
	case map[string]any:
		d.Metadata = Metadata(v)
	}
	return d, nil
}

// --- chunk rows ---

func (r *RowStore) InsertChunk(ctx context.Context, c Chunk) (Chunk, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.VectorPointID == "" {
		c.VectorPointID = c.ID
	}
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return Chunk{}, apierr.Internal("marshal chunk metadata", err)
	}
	err = r.db.Execute(ctx, `
INSERT INTO chunks (id, document_id, content, chunk_index, token_count, vector_point_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, c.ID, c.DocumentID, c.Content, c.ChunkIndex, c.TokenCount, c.VectorPointID, metaJSON)
	if err != nil {
		return Chunk{}, err
	}
	return c, nil
}

func (r *RowStore) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := r.db.FetchAll(ctx, `
SELECT id, document_id, content, chunk_index, token_count, vector_point_id, metadata
FROM chunks WHERE document_id = $1 ORDER BY chunk_index ASC
`, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		out = append(out, chunkFromRow(row))
	}
	return out, nil
}

func (r *RowStore) DeleteChunks(ctx context.Context, documentID string) error {
	return r.db.Execute(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
}

func chunkFromRow(row store.Row) Chunk {
	c := Chunk{
		ID:            asString(row["id"]),
		DocumentID:    asString(row["document_id"]),
		Content:       asString(row["content"]),
		ChunkIndex:    int(asInt64(row["chunk_index"])),
		TokenCount:    int(asInt64(row["token_count"])),
		VectorPointID: asString(row["vector_point_id"]),
	}
	c.Metadata = Metadata{}
	switch v := row["metadata"].(type) {
	case []byte:
		_ = json.Unmarshal(v, &c.Metadata)
	case string:
		_ = json.Unmarshal([]byte(v), &c.Metadata)
	case map[string]any:
		c.Metadata = Metadata(v)
	}
	return c
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}
