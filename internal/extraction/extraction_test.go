package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	responses []string
	calls     int
}

func (f *fakeClient) Extract(ctx context.Context, systemPrompt, userMessage string) (string, int, int, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		return `{"entities":[],"relationships":[]}`, 10, 5, nil
	}
	return f.responses[idx], 10, 5, nil
}

func TestExtract_MalformedJSONDegradesToEmpty(t *testing.T) {
	client := &fakeClient{responses: []string{"not json at all"}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{{Index: 0, Content: "hello"}}, "note", Context{})
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relationships)
}

func TestExtract_StripsFencedJSON(t *testing.T) {
	client := &fakeClient{responses: []string{
		"```json\n{\"entities\":[{\"temp_id\":\"e1\",\"name\":\"Alpha\",\"label\":\"Component\"}],\"relationships\":[]}\n```",
	}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{{Index: 0, Content: "hello"}}, "component", Context{})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Alpha", result.Entities[0].Name)
}

func TestExtract_DiscardsEntitiesMissingName(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"entities":[{"temp_id":"e1","name":"","label":"Component"},{"temp_id":"e2","name":"Beta","label":"Component"}],"relationships":[]}`,
	}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{{Index: 0, Content: "x"}}, "component", Context{})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Beta", result.Entities[0].Name)
}

func TestExtract_CrossChunkDedupPrefersMostUppercase(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"entities":[{"temp_id":"e1","name":"alpha component","label":"Component","properties":{"x":1}}],"relationships":[]}`,
		`{"entities":[{"temp_id":"e1","name":"Alpha Component","label":"Component","properties":{"y":2}}],"relationships":[]}`,
	}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{
		{Index: 0, Content: "a"}, {Index: 1, Content: "b"},
	}, "component", Context{})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Alpha Component", result.Entities[0].Name)
	assert.Equal(t, float64(1), result.Entities[0].Properties["x"])
	assert.Equal(t, float64(2), result.Entities[0].Properties["y"])
}

func TestExtract_RelationshipsRemapAndDropSelfLoops(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"entities":[{"temp_id":"e1","name":"Alpha","label":"Component"},{"temp_id":"e2","name":"Beta","label":"Component"}],
		  "relationships":[{"source":"e1","target":"e2","label":"USES"},{"source":"e1","target":"e1","label":"USES"}]}`,
	}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{{Index: 0, Content: "a"}}, "component", Context{})
	require.NoError(t, err)
	require.Len(t, result.Relationships, 1)
	assert.NotEqual(t, result.Relationships[0].Source, result.Relationships[0].Target)
}

func TestExtract_DuplicateTriplesMergeNotDuplicate(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"entities":[{"temp_id":"e1","name":"Alpha","label":"Component"},{"temp_id":"e2","name":"Beta","label":"Component"}],
		  "relationships":[{"source":"e1","target":"e2","label":"USES","properties":{"weight":1}},
		                     {"source":"e1","target":"e2","label":"USES","properties":{"note":"dup"}}]}`,
	}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{{Index: 0, Content: "a"}}, "component", Context{})
	require.NoError(t, err)
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, float64(1), result.Relationships[0].Properties["weight"])
	assert.Equal(t, "dup", result.Relationships[0].Properties["note"])
}

func TestExtract_NoClientReturnsError(t *testing.T) {
	ex := NewExtractor(nil)
	assert.False(t, ex.Configured())
	_, err := ex.Extract(context.Background(), nil, "note", Context{})
	assert.Error(t, err)
}

func TestExtract_TokensUsedSumsAcrossChunks(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"entities":[],"relationships":[]}`,
		`{"entities":[],"relationships":[]}`,
	}}
	ex := NewExtractor(client)
	result, err := ex.Extract(context.Background(), []ChunkInput{
		{Index: 0, Content: "a"}, {Index: 1, Content: "b"},
	}, "note", Context{})
	require.NoError(t, err)
	assert.Equal(t, 30, result.TokensUsed)
}
