package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgraph/internal/store"
)

// fakeStore is a minimal in-memory stand-in for internal/store.Store that
// lets each test script the exact rows ExecuteQueryOnNamedGraph should hand
// back, in call order, without touching Postgres.
type fakeStore struct {
	responses [][]store.Row
	queries   []string
	call      int
	execErr   error
}

func (f *fakeStore) Execute(ctx context.Context, sql string, args ...any) error {
	f.queries = append(f.queries, sql)
	return f.execErr
}

func (f *fakeStore) ExecuteQueryOnNamedGraph(ctx context.Context, graphName, query string) ([]store.Row, error) {
	f.queries = append(f.queries, query)
	if f.call >= len(f.responses) {
		return nil, nil
	}
	rows := f.responses[f.call]
	f.call++
	return rows, nil
}

func TestCreateGraph_TreatsAlreadyExistsAsSuccess(t *testing.T) {
	fs := &fakeStore{execErr: errors.New(`graph "proj_demo" already exists`)}
	svc := New(fs)
	err := svc.CreateGraph(context.Background(), "proj_demo")
	require.NoError(t, err)
}

func TestCreateEntity_RejectsUnknownLabel(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.CreateEntity(context.Background(), "g", EntityInput{Name: "x", Type: EntityLabel("NotAThing")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid entity type")
}

func TestCreateEntity_BuildsRowIntoEntity(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{{"id": float64(7), "name": "Widget", "type": []any{"Component"}}},
	}}
	svc := New(fs)
	e, err := svc.CreateEntity(context.Background(), "g", EntityInput{Name: "Widget", Type: LabelComponent})
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, "Widget", e.Name)
	assert.Equal(t, "Component", e.Type)
}

func TestGetEntity_NotFoundWhenNoRow(t *testing.T) {
	svc := New(&fakeStore{responses: [][]store.Row{{}}})
	_, err := svc.GetEntity(context.Background(), "g", "5")
	require.Error(t, err)
}

func TestGetEntity_DropsNilConnectionPlaceholder(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{{
			"id": float64(1), "name": "A", "type": []any{"Module"}, "properties": map[string]any{},
			"connections": []any{
				map[string]any{"id": nil, "name": nil, "type": nil, "relationship": nil, "direction": nil},
			},
		}},
	}}
	svc := New(fs)
	ewc, err := svc.GetEntity(context.Background(), "g", "1")
	require.NoError(t, err)
	assert.Empty(t, ewc.Connections)
}

func TestUpdateEntity_RequiresValidID(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.UpdateEntity(context.Background(), "g", "not-a-number", Properties{"x": 1})
	require.Error(t, err)
}

func TestCreateRelationship_RejectsUnknownType(t *testing.T) {
	svc := New(&fakeStore{})
	_, err := svc.CreateRelationship(context.Background(), "g", RelationshipInput{
		SourceID: "1", TargetID: "2", Type: RelationshipLabel("NOT_REAL"),
	})
	require.Error(t, err)
}

func TestCreateRelationship_EndpointsMissingIsValidationError(t *testing.T) {
	svc := New(&fakeStore{responses: [][]store.Row{{}}})
	_, err := svc.CreateRelationship(context.Background(), "g", RelationshipInput{
		SourceID: "1", TargetID: "2", Type: RelImports,
	})
	require.Error(t, err)
}

func TestUpsertEntity_CreatesWhenNoMatch(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{},
		{{"id": float64(9), "name": "Foo", "type": []any{"Module"}}},
	}}
	svc := New(fs)
	res, err := svc.UpsertEntity(context.Background(), "g", EntityInput{Name: "Foo", Type: LabelModule}, "desc")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "9", res.ID)
}

func TestUpsertEntity_MergesPropertiesWhenFound(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{{"id": float64(3), "name": "Foo", "properties": map[string]any{"color": "red"}}},
		{{"id": float64(3), "name": "Foo", "properties": map[string]any{"color": "blue"}}},
	}}
	svc := New(fs)
	res, err := svc.UpsertEntity(context.Background(), "g", EntityInput{
		Name: "Foo", Type: LabelModule, Properties: Properties{"color": "blue"},
	}, "")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"color"}, res.MergedProperties)
}

func TestFindDuplicates_GroupsByLowercaseNameAndLabel(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{
			{"id": float64(1), "name": "Foo", "type": []any{"Module"}, "properties": map[string]any{}},
			{"id": float64(2), "name": "foo", "type": []any{"Module"}, "properties": map[string]any{}},
			{"id": float64(3), "name": "Bar", "type": []any{"Module"}, "properties": map[string]any{}},
		},
	}}
	svc := New(fs)
	groups, err := svc.FindDuplicates(context.Background(), "g", "")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Module", groups[0].Type)
	assert.Len(t, groups[0].Duplicates, 2)
}

func TestBatchCreate_ResolvesRefsAcrossEntitiesAndRelationships(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{{"id": float64(10), "name": "A", "type": []any{"Module"}}},
		{{"id": float64(11), "name": "B", "type": []any{"Module"}}},
		{{"id": float64(99), "type": "IMPORTS"}},
	}}
	svc := New(fs)
	result, err := svc.BatchCreate(context.Background(),
		"g",
		[]BatchEntity{{Ref: "a", Name: "A", Type: LabelModule}, {Ref: "b", Name: "B", Type: LabelModule}},
		[]BatchRelationship{{FromRef: "a", ToRef: "b", Type: RelImports}},
	)
	require.NoError(t, err)
	require.Len(t, result.EntitiesCreated, 2)
	require.Len(t, result.RelationshipsCreated, 1)
	assert.Equal(t, "10", result.RelationshipsCreated[0].From)
	assert.Equal(t, "11", result.RelationshipsCreated[0].To)
}

func TestBatchCreate_CapturesPerItemErrorsWithoutAborting(t *testing.T) {
	svc := New(&fakeStore{})
	result, err := svc.BatchCreate(context.Background(), "g",
		[]BatchEntity{{Ref: "a", Name: "A", Type: EntityLabel("Bogus")}},
		nil,
	)
	require.NoError(t, err)
	assert.Empty(t, result.EntitiesCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "A")
}

func TestGetLocalGraph_SingletonWhenDisconnected(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{},
		{{"id": float64(4), "name": "Lonely", "type": []any{"Module"}, "properties": map[string]any{}}},
	}}
	svc := New(fs)
	lg, err := svc.GetLocalGraph(context.Background(), "g", "4", 2)
	require.NoError(t, err)
	require.Len(t, lg.Nodes, 1)
	assert.Equal(t, "Lonely", lg.Nodes[0].Name)
	assert.Empty(t, lg.Edges)
}

func TestGetGraphStats_SumsTypeCountsAndEdges(t *testing.T) {
	fs := &fakeStore{responses: [][]store.Row{
		{
			{"type": []any{"Module"}, "count": float64(3)},
			{"type": []any{"File"}, "count": float64(2)},
		},
		{{"edge_count": float64(5)}},
	}}
	svc := New(fs)
	stats, err := svc.GetGraphStats(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.NodeCount)
	assert.Equal(t, 5, stats.EdgeCount)
	assert.Equal(t, 3, stats.Types["Module"])
	assert.Equal(t, 2, stats.Types["File"])
}

func TestHasDangerousKeywords_WordBoundaryAvoidsFalsePositives(t *testing.T) {
	safe := []string{
		"MATCH (n) WHERE n.dataset = 'x' RETURN n",
		"MATCH (n) RETURN n.create_date",
		"MATCH (n) WHERE n.MERGED_AT > 0 RETURN n",
	}
	for _, q := range safe {
		assert.False(t, HasDangerousKeywords(q), q)
	}
}

func TestHasDangerousKeywords_CatchesKeywordsOutsideComments(t *testing.T) {
	queries := []string{
		"MATCH (n) DELETE n",
		"// harmless\nMATCH (n) SET n.x = 1 RETURN n",
		"/* comment */ MATCH (n) DETACH DELETE n",
	}
	for _, q := range queries {
		assert.True(t, HasDangerousKeywords(q), q)
	}
}

func TestHasDangerousKeywords_CommentsAreStrippedNotExecuted(t *testing.T) {
	q := "MATCH (n) RETURN n // DELETE would be dangerous if this weren't a comment"
	assert.False(t, HasDangerousKeywords(q))
}
