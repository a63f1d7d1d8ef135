package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgraph/internal/graph"
	"kgraph/internal/projects"
	"kgraph/internal/store"
)

// fakeProjectDB is a minimal in-memory stand-in for internal/projects.Store.
type fakeProjectDB struct {
	rows map[string]store.Row
}

func newFakeProjectDB() *fakeProjectDB { return &fakeProjectDB{rows: map[string]store.Row{}} }

func (f *fakeProjectDB) Execute(ctx context.Context, sql string, args ...any) error {
	if len(args) > 0 {
		if slug, ok := args[0].(string); ok {
			delete(f.rows, slug)
		}
	}
	return nil
}

func (f *fakeProjectDB) FetchOne(ctx context.Context, sql string, args ...any) (store.Row, bool, error) {
	// GetBySlug passes only the slug; Insert passes the full column tuple.
	if len(args) == 1 {
		slug, _ := args[0].(string)
		row, ok := f.rows[slug]
		return row, ok, nil
	}
	slug, _ := args[1].(string)
	if _, exists := f.rows[slug]; exists {
		return nil, false, nil
	}
	row := store.Row{
		"id": args[0], "slug": slug, "name": args[2], "graph_name": args[3],
		"description": args[4], "settings": args[5],
	}
	f.rows[slug] = row
	return row, true, nil
}

func (f *fakeProjectDB) FetchAll(ctx context.Context, sql string, args ...any) ([]store.Row, error) {
	out := make([]store.Row, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

type fakeGraphLifecycle struct{}

func (fakeGraphLifecycle) CreateGraph(ctx context.Context, graphName string) error { return nil }
func (fakeGraphLifecycle) DropGraph(ctx context.Context, graphName string)         {}

type fakeVectorLifecycle struct{}

func (fakeVectorLifecycle) CreateCollection(ctx context.Context, slug string) error { return nil }
func (fakeVectorLifecycle) DeleteCollection(ctx context.Context, slug string) bool  { return true }

// fakeGraphStore scripts ExecuteQueryOnNamedGraph responses in call order,
// mirroring internal/graph's own test fake.
type fakeGraphStore struct {
	responses [][]store.Row
	call      int
}

func (f *fakeGraphStore) Execute(ctx context.Context, sql string, args ...any) error { return nil }

func (f *fakeGraphStore) ExecuteQueryOnNamedGraph(ctx context.Context, graphName, query string) ([]store.Row, error) {
	if f.call >= len(f.responses) {
		return nil, nil
	}
	rows := f.responses[f.call]
	f.call++
	return rows, nil
}

func newTestServer(t *testing.T, graphStore *fakeGraphStore) (*Server, *projects.Service) {
	t.Helper()
	projSvc := projects.New(projects.NewRowStore(newFakeProjectDB()), fakeGraphLifecycle{}, fakeVectorLifecycle{}, nil, nil)
	graphSvc := graph.New(graphStore)
	return NewServer(&Services{Projects: projSvc, Graph: graphSvc, Version: "test"}), projSvc
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGraphStore{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateAndGetProject(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGraphStore{})

	reqBody, _ := json.Marshal(map[string]string{"name": "Demo Shop"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created projects.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "demo-shop", created.Slug)
	assert.Equal(t, "project_demo_shop", created.GraphName)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/projects/demo-shop", nil)
	getRec := httptest.NewRecorder()
	srv.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetProject_UnknownSlugIs404(t *testing.T) {
	srv, _ := newTestServer(t, &fakeGraphStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/nonexistent", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])
}

func TestCypherQuery_RejectsDangerousKeyword(t *testing.T) {
	srv, projSvc := newTestServer(t, &fakeGraphStore{})
	_, err := projSvc.Create(context.Background(), "Demo Shop", "", nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"query": "MATCH (n) DETACH DELETE n"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/demo-shop/query/cypher", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEntity_RoundTrips(t *testing.T) {
	fs := &fakeGraphStore{responses: [][]store.Row{
		{{"id": float64(1), "name": "Alpha", "type": []any{"Component"}}},
	}}
	srv, projSvc := newTestServer(t, fs)
	_, err := projSvc.Create(context.Background(), "Demo Shop", "", nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"name": "Alpha", "type": "Component"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/demo-shop/entities", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entity graph.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entity))
	assert.Equal(t, "Alpha", entity.Name)
}
