package projects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgraph/internal/store"
)

type fakeDB struct {
	rows map[string]store.Row
}

func newFakeDB() *fakeDB { return &fakeDB{rows: map[string]store.Row{}} }

func (f *fakeDB) Execute(ctx context.Context, sql string, args ...any) error {
	if len(args) > 0 {
		if slug, ok := args[0].(string); ok {
			delete(f.rows, slug)
		}
	}
	return nil
}

func (f *fakeDB) FetchOne(ctx context.Context, sql string, args ...any) (store.Row, bool, error) {
	if len(args) == 1 { // GetBySlug passes only the slug
		slug, _ := args[0].(string)
		row, ok := f.rows[slug]
		return row, ok, nil
	}
	slug, _ := args[1].(string)
	if _, exists := f.rows[slug]; exists {
		return nil, false, nil // ON CONFLICT DO NOTHING -> no row
	}
	row := store.Row{
		"id": args[0], "slug": slug, "name": args[2], "graph_name": args[3],
		"description": args[4], "settings": args[5],
	}
	f.rows[slug] = row
	return row, true, nil
}

func (f *fakeDB) FetchAll(ctx context.Context, sql string, args ...any) ([]store.Row, error) {
	out := make([]store.Row, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

type fakeGraph struct {
	created, dropped []string
}

func (f *fakeGraph) CreateGraph(ctx context.Context, graphName string) error {
	f.created = append(f.created, graphName)
	return nil
}
func (f *fakeGraph) DropGraph(ctx context.Context, graphName string) {
	f.dropped = append(f.dropped, graphName)
}

type fakeVectors struct {
	created, deleted []string
	failCreate       bool
}

func (f *fakeVectors) CreateCollection(ctx context.Context, slug string) error {
	if f.failCreate {
		return assert.AnError
	}
	f.created = append(f.created, slug)
	return nil
}
func (f *fakeVectors) DeleteCollection(ctx context.Context, slug string) bool {
	f.deleted = append(f.deleted, slug)
	return true
}

func TestCreate_DerivesSlugGraphAndCollection(t *testing.T) {
	db := newFakeDB()
	g := &fakeGraph{}
	v := &fakeVectors{}
	svc := New(NewRowStore(db), g, v, nil, nil)

	p, err := svc.Create(context.Background(), "Demo Shop", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "demo-shop", p.Slug)
	assert.Equal(t, "project_demo_shop", p.GraphName)
	assert.Equal(t, "project_demo-shop_chunks", p.CollectionName())
	assert.Contains(t, g.created, "project_demo_shop")
	assert.Contains(t, v.created, "demo-shop")
}

func TestCreate_DuplicateSlugConflicts(t *testing.T) {
	db := newFakeDB()
	svc := New(NewRowStore(db), &fakeGraph{}, &fakeVectors{}, nil, nil)
	_, err := svc.Create(context.Background(), "Demo Shop", "", nil)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "Demo Shop", "", nil)
	require.Error(t, err)
}

func TestCreate_RollsBackRowWhenCollectionCreateFails(t *testing.T) {
	db := newFakeDB()
	g := &fakeGraph{}
	v := &fakeVectors{failCreate: true}
	svc := New(NewRowStore(db), g, v, nil, nil)

	_, err := svc.Create(context.Background(), "Demo Shop", "", nil)
	require.Error(t, err)
	assert.Empty(t, db.rows)
	assert.Contains(t, g.dropped, "project_demo_shop")
}

type fakeCascader struct{ calledWith string }

func (f *fakeCascader) DeleteAllForProject(ctx context.Context, projectID, projectSlug string) error {
	f.calledWith = projectID
	return nil
}

func TestDelete_DropsGraphCollectionAndCascadesDocuments(t *testing.T) {
	db := newFakeDB()
	g := &fakeGraph{}
	v := &fakeVectors{}
	cascader := &fakeCascader{}
	svc := New(NewRowStore(db), g, v, cascader, nil)

	p, err := svc.Create(context.Background(), "Demo Shop", "", nil)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), p.Slug)
	require.NoError(t, err)

	assert.Contains(t, g.dropped, "project_demo_shop")
	assert.Contains(t, v.deleted, "demo-shop")
	assert.Equal(t, p.ID, cascader.calledWith)
	assert.Empty(t, db.rows)
}
