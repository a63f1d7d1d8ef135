package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgraph/internal/store"
)

type fakeDB struct {
	docs   map[string]store.Row
	chunks map[string][]store.Row
}

func newFakeDB() *fakeDB {
	return &fakeDB{docs: map[string]store.Row{}, chunks: map[string][]store.Row{}}
}

func (f *fakeDB) Execute(ctx context.Context, sql string, args ...any) error {
	switch {
	case contains(sql, "DELETE FROM chunks"):
		delete(f.chunks, args[0].(string))
	case contains(sql, "DELETE FROM documents WHERE project_id = $1 AND id"):
		delete(f.docs, args[1].(string))
	case contains(sql, "DELETE FROM documents"):
		for id, row := range f.docs {
			if row["project_id"] == args[0] {
				delete(f.docs, id)
			}
		}
	}
	return nil
}

func (f *fakeDB) FetchOne(ctx context.Context, sql string, args ...any) (store.Row, bool, error) {
	if contains(sql, "INSERT INTO documents") {
		row := store.Row{
			"id": args[0], "project_id": args[1], "filename": args[2], "content_type": args[3],
			"source_url": args[4], "raw_content": args[5], "metadata": args[6],
			"processed": false, "error_message": "",
		}
		f.docs[args[0].(string)] = row
		return row, true, nil
	}
	id, _ := args[1].(string)
	row, ok := f.docs[id]
	return row, ok, nil
}

func (f *fakeDB) FetchAll(ctx context.Context, sql string, args ...any) ([]store.Row, error) {
	out := []store.Row{}
	for _, row := range f.docs {
		if row["project_id"] == args[0] {
			out = append(out, row)
		}
	}
	return out, nil
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

type fakeVectors struct {
	deletedDocs       []string
	deletedCollection []string
}

func (f *fakeVectors) DeleteByDocument(ctx context.Context, projectSlug, documentID string) (int, error) {
	f.deletedDocs = append(f.deletedDocs, documentID)
	return 1, nil
}

func (f *fakeVectors) DeleteCollection(ctx context.Context, projectSlug string) bool {
	f.deletedCollection = append(f.deletedCollection, projectSlug)
	return true
}

func TestCreate_RejectsUnknownContentType(t *testing.T) {
	svc := New(NewRowStore(newFakeDB()), &fakeVectors{})
	_, err := svc.Create(context.Background(), Document{ProjectID: "p1", ContentType: "bogus"})
	require.Error(t, err)
}

func TestDelete_ClearsChunksAndVectorPoints(t *testing.T) {
	db := newFakeDB()
	vecs := &fakeVectors{}
	svc := New(NewRowStore(db), vecs)

	d, err := svc.Create(context.Background(), Document{ProjectID: "p1", ContentType: ContentNote, RawContent: "hello"})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "p1", "demo", d.ID)
	require.NoError(t, err)
	assert.Contains(t, vecs.deletedDocs, d.ID)
	assert.Empty(t, db.docs)
}

func TestDeleteAllForProject_ClearsEveryDocument(t *testing.T) {
	db := newFakeDB()
	vecs := &fakeVectors{}
	svc := New(NewRowStore(db), vecs)

	_, err := svc.Create(context.Background(), Document{ProjectID: "p1", ContentType: ContentNote})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Document{ProjectID: "p1", ContentType: ContentSpec})
	require.NoError(t, err)

	err = svc.DeleteAllForProject(context.Background(), "p1", "demo")
	require.NoError(t, err)
	assert.Len(t, vecs.deletedDocs, 2)
	assert.Empty(t, db.docs)
}
