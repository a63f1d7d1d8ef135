package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnColumns_SimpleAliases(t *testing.T) {
	cols := returnColumns(`MATCH (n) RETURN n AS entity, n.name AS name`)
	assert.Equal(t, []string{"entity", "name"}, cols)
}

func TestReturnColumns_NoAlias(t *testing.T) {
	cols := returnColumns(`MATCH (n) RETURN n.id`)
	assert.Equal(t, []string{"id"}, cols)
}

func TestReturnColumns_RespectsNestingDepth(t *testing.T) {
	// A map literal in the RETURN list must not split on its internal comma.
	cols := returnColumns(`MATCH (n) RETURN {a: 1, b: 2} AS bundle, n.name AS name`)
	assert.Equal(t, []string{"bundle", "name"}, cols)
}

func TestReturnColumns_StripsOrderByAndLimit(t *testing.T) {
	cols := returnColumns(`MATCH (n) RETURN n.name AS name ORDER BY name LIMIT 5`)
	assert.Equal(t, []string{"name"}, cols)
}

func TestReturnColumns_DefaultsWhenNoReturn(t *testing.T) {
	cols := returnColumns(`MATCH (n) SET n.x = 1`)
	assert.Equal(t, []string{"data"}, cols)
}

func TestReturnColumns_WordBoundaryOnReturnKeyword(t *testing.T) {
	// "returned_at" must not be mistaken for the RETURN keyword.
	cols := returnColumns(`MATCH (n) WHERE n.returned_at IS NOT NULL RETURN n.name AS name`)
	assert.Equal(t, []string{"name"}, cols)
}

func TestDecodeAgeValue_Vertex(t *testing.T) {
	v, err := decodeAgeValue(`{"id": 1, "label": "Entity", "properties": {"name": "Alpha"}}::vertex`)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vertex", m["_age_type"])
	assert.Equal(t, "Entity", m["label"])
}

func TestDecodeAgeValue_Edge(t *testing.T) {
	v, err := decodeAgeValue(`{"id": 2, "label": "USES", "start_id": 1, "end_id": 3, "properties": {}}::edge`)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "edge", m["_age_type"])
}

func TestDecodeAgeValue_PlainScalar(t *testing.T) {
	v, err := decodeAgeValue(`"Alpha"`)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", v)
}

func TestDecodeAgeValue_Integer(t *testing.T) {
	v, err := decodeAgeValue(`42`)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v)
}

func TestDecodeAgeValue_Null(t *testing.T) {
	v, err := decodeAgeValue(``)
	require.NoError(t, err)
	assert.Nil(t, v)
}
