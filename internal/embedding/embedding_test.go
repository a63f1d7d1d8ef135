package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	dim    int
	fail   map[string]bool
	calls  int
}

func (f *fakeProvider) Dimension() int { return f.dim }

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.fail[t] {
			return nil, assert.AnError
		}
		vec := make([]float32, f.dim)
		vec[0] = float32(len(t))
		out[i] = vec
	}
	return out, nil
}

func TestGateway_NoProviderReturnsZeroVectors(t *testing.T) {
	gw := &Gateway{provider: nil, dimension: 8, concurrency: 5}
	out := gw.EmbedBatch(context.Background(), []string{"hello world this is long enough"})
	require.Len(t, out, 1)
	assert.Len(t, out[0], 8)
	for _, v := range out[0] {
		assert.Equal(t, float32(0), v)
	}
}

func TestGateway_ShortTextSkipsProvider(t *testing.T) {
	fp := &fakeProvider{dim: 4}
	gw := &Gateway{provider: fp, dimension: 4, concurrency: 5}
	out := gw.EmbedBatch(context.Background(), []string{"hi"})
	require.Len(t, out, 1)
	assert.Equal(t, make([]float32, 4), out[0])
	assert.Equal(t, 0, fp.calls)
}

func TestGateway_PreservesOrderAcrossConcurrentCalls(t *testing.T) {
	fp := &fakeProvider{dim: 2}
	gw := &Gateway{provider: fp, dimension: 2, concurrency: 3}
	texts := []string{
		"aaaaaaaaaaaaa",
		"bbbbbbbbbbbbbbbbbbbbb",
		"ccccccccccccccccccc",
		"ddddddddddddd",
	}
	out := gw.EmbedBatch(context.Background(), texts)
	require.Len(t, out, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), out[i][0])
	}
}

func TestGateway_ProviderFailureDegradesToZeroVector(t *testing.T) {
	fp := &fakeProvider{dim: 3, fail: map[string]bool{"this text will fail embedding": true}}
	gw := &Gateway{provider: fp, dimension: 3, concurrency: 2}
	out := gw.EmbedBatch(context.Background(), []string{"this text will fail embedding", "this text succeeds fine"})
	require.Len(t, out, 2)
	assert.Equal(t, make([]float32, 3), out[0])
	assert.NotEqual(t, make([]float32, 3), out[1])
}
