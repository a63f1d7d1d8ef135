// Package chunking implements the token-aware paragraph/sentence splitter
// with overlap used to turn an ingested document's raw text into the units
// of embedding and extraction. Given identical text and parameters, the
// emitted chunk boundaries are fully deterministic.
package chunking

import (
	"regexp"
	"strings"
)

// Tokenizer counts and decodes tokens under some named scheme. The default
// whitespace tokenizer treats each run of non-space characters as one token,
// matching the teacher's textsplitters.WhitespaceTokenizer shape.
type Tokenizer interface {
	Tokenize(text string) []string
	Detokenize(tokens []string) string
}

// WhitespaceTokenizer splits on whitespace runs and decodes by joining with
// a single space.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) []string    { return strings.Fields(text) }
func (WhitespaceTokenizer) Detokenize(tokens []string) string { return strings.Join(tokens, " ") }

// Config parameterises Split. ChunkSize and ChunkOverlap are measured in
// tokens under Tokenizer (defaults: 500/50, whitespace).
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Tokenizer    Tokenizer
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize - 1
	}
	if c.Tokenizer == nil {
		c.Tokenizer = WhitespaceTokenizer{}
	}
	return c
}

// Chunk is one emitted window of a document's text.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
	StartChar  int
	EndChar    int
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)
var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// Split breaks text into chunks per the paragraph/sentence/overlap
// algorithm: paragraphs are accumulated while they fit in ChunkSize tokens;
// an overflowing paragraph that itself exceeds ChunkSize is split by
// sentence, and a single oversized sentence is force-split on token windows
// stepping by ChunkSize-ChunkOverlap. A final overlap pass prepends the
// tail of each chunk's predecessor to it.
func Split(text string, cfg Config) []Chunk {
	cfg = cfg.withDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)

	var cores []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			cores = append(cores, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}
	}

	for _, para := range paragraphs {
		paraTokens := cfg.Tokenizer.Tokenize(para)
		if currentTokens+len(paraTokens) <= cfg.ChunkSize {
			current = append(current, para)
			currentTokens += len(paraTokens)
			continue
		}
		flush()
		if len(paraTokens) > cfg.ChunkSize {
			cores = append(cores, splitOversizedParagraph(para, cfg)...)
			continue
		}
		current = []string{para}
		currentTokens = len(paraTokens)
	}
	flush()

	chunks := locateChunks(text, cores, cfg.Tokenizer)
	applyOverlap(chunks, cfg)
	return chunks
}

// splitParagraphs splits on blank-line boundaries, dropping empty segments.
func splitParagraphs(text string) []string {
	raw := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitOversizedParagraph splits a too-large paragraph by sentence
// terminators, merging sentences greedily into sub-chunks, and force-splits
// any single sentence that alone exceeds ChunkSize on token windows.
func splitOversizedParagraph(para string, cfg Config) []string {
	sentences := splitSentences(para)
	var out []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
	}

	for _, sent := range sentences {
		sentTokens := cfg.Tokenizer.Tokenize(sent)
		if len(sentTokens) > cfg.ChunkSize {
			flush()
			out = append(out, forceSplitTokens(sentTokens, cfg)...)
			continue
		}
		if currentTokens+len(sentTokens) <= cfg.ChunkSize {
			current = append(current, sent)
			currentTokens += len(sentTokens)
			continue
		}
		flush()
		current = []string{sent}
		currentTokens = len(sentTokens)
	}
	flush()
	return out
}

func splitSentences(para string) []string {
	marked := sentenceBoundary.ReplaceAllString(para, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{para}
	}
	return out
}

// forceSplitTokens windows a too-large token run stepping by
// ChunkSize-ChunkOverlap, guaranteeing forward progress even when Overlap is
// close to ChunkSize.
func forceSplitTokens(tokens []string, cfg Config) []string {
	step := cfg.ChunkSize - cfg.ChunkOverlap
	if step <= 0 {
		step = 1
	}
	var out []string
	for start := 0; start < len(tokens); start += step {
		end := start + cfg.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, cfg.Tokenizer.Detokenize(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return out
}

// locateChunks assigns each core chunk its approximate start/end character
// offsets within the original text, searching forward from the previous
// match so repeated substrings resolve in document order.
func locateChunks(text string, cores []string, tok Tokenizer) []Chunk {
	out := make([]Chunk, 0, len(cores))
	searchFrom := 0
	for i, core := range cores {
		start := searchFrom
		if idx := strings.Index(text[searchFrom:], core); idx >= 0 {
			start = searchFrom + idx
		}
		end := start + len(core)
		if end > len(text) {
			end = len(text)
		}
		searchFrom = end
		out = append(out, Chunk{
			Index:      i,
			Content:    core,
			TokenCount: len(tok.Tokenize(core)),
			StartChar:  start,
			EndChar:    end,
		})
	}
	return out
}

// applyOverlap prepends the tail of each chunk's predecessor (decoded from
// its last ChunkOverlap tokens) directly onto the following chunk, without
// inserting an extra separating space, then recomputes that chunk's token
// count in place.
func applyOverlap(chunks []Chunk, cfg Config) {
	if cfg.ChunkOverlap <= 0 {
		return
	}
	for i := 1; i < len(chunks); i++ {
		prevTokens := cfg.Tokenizer.Tokenize(chunks[i-1].Content)
		n := cfg.ChunkOverlap
		if n > len(prevTokens) {
			n = len(prevTokens)
		}
		if n == 0 {
			continue
		}
		overlapText := cfg.Tokenizer.Detokenize(prevTokens[len(prevTokens)-n:])
		chunks[i].Content = overlapText + chunks[i].Content
		chunks[i].TokenCount = len(cfg.Tokenizer.Tokenize(chunks[i].Content))
	}
}
