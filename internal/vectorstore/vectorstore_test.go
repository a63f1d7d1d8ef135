package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCollectionName_DerivesFromSlug(t *testing.T) {
	assert.Equal(t, "project_acme-demo_chunks", CollectionName("acme-demo"))
}

func TestPreparePoint_PreservesUUIDIDsUnchanged(t *testing.T) {
	id := uuid.New().String()
	pointID, payload := preparePoint(Point{ID: id, Vector: []float32{0.1}, Payload: map[string]any{"a": 1}})
	assert.Equal(t, id, pointID.GetUuid())
	_, hasOriginal := payload[payloadIDField]
	assert.False(t, hasOriginal)
}

func TestPreparePoint_TranslatesNonUUIDIDsDeterministically(t *testing.T) {
	pointID1, payload1 := preparePoint(Point{ID: "chunk-42", Vector: []float32{0.1}})
	pointID2, _ := preparePoint(Point{ID: "chunk-42", Vector: []float32{0.1}})

	assert.Equal(t, pointID1.GetUuid(), pointID2.GetUuid())
	assert.NotEqual(t, "chunk-42", pointID1.GetUuid())
	originalVal, ok := payload1[payloadIDField]
	assert.True(t, ok)
	assert.Equal(t, "chunk-42", originalVal.GetStringValue())
}
