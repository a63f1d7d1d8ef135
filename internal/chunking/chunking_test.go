package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Deterministic(t *testing.T) {
	text := "Alpha is a Component.\n\nBeta uses Alpha.\n\nGamma extends Beta."
	cfg := Config{ChunkSize: 500, ChunkOverlap: 50}
	a := Split(text, cfg)
	b := Split(text, cfg)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Content, b[i].Content)
	}
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Nil(t, Split("   \n\n  ", Config{}))
}

func TestSplit_SingleParagraphFits(t *testing.T) {
	chunks := Split("Alpha is a Component.", Config{ChunkSize: 500, ChunkOverlap: 50})
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Alpha is a Component.")
}

func TestSplit_ParagraphsAccumulateUntilOverflow(t *testing.T) {
	// Two short paragraphs should land in one chunk when chunk_size is large.
	text := "One two three.\n\nFour five six."
	chunks := Split(text, Config{ChunkSize: 500, ChunkOverlap: 0})
	require.Len(t, chunks, 1)
}

func TestSplit_OversizedParagraphSplitsBySentence(t *testing.T) {
	sentence := strings.Repeat("word ", 3) // 3 tokens
	para := strings.Repeat(sentence+". ", 10)
	chunks := Split(para, Config{ChunkSize: 5, ChunkOverlap: 1})
	require.True(t, len(chunks) > 1)
	for _, c := range chunks[:len(chunks)-1] {
		// pre-overlap core content never exceeds chunk size; overlap prepend
		// can push the final recomputed count slightly higher by design.
		assert.LessOrEqual(t, c.TokenCount, 5+1)
	}
}

func TestSplit_ForceSplitsSingleOversizedSentence(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = "word"
	}
	sentence := strings.Join(words, " ") + "." // one sentence, 30 tokens, no terminators inside
	chunks := Split(sentence, Config{ChunkSize: 10, ChunkOverlap: 2})
	require.True(t, len(chunks) >= 3)
}

func TestSplit_OverlapSharesTailTokens(t *testing.T) {
	text := "aaa bbb ccc ddd.\n\neee fff ggg hhh.\n\niii jjj kkk lll."
	chunks := Split(text, Config{ChunkSize: 4, ChunkOverlap: 2, Tokenizer: WhitespaceTokenizer{}})
	require.True(t, len(chunks) >= 2)
	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasPrefix(chunks[i].Content, "ggg hhh") || strings.Contains(chunks[i].Content, "ccc ddd") || strings.HasPrefix(chunks[i].Content, "ddd"))
	}
}

func TestSplit_ConcatenationCoversText(t *testing.T) {
	text := "Alpha is a Component.\n\nBeta uses Alpha."
	chunks := Split(text, Config{ChunkSize: 500, ChunkOverlap: 0})
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Content)
	}
	assert.Contains(t, joined.String(), "Alpha is a Component.")
	assert.Contains(t, joined.String(), "Beta uses Alpha.")
}
