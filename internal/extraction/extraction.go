// Package extraction implements LLM-driven entity/relationship extraction
// from document chunks: content-type-specialised prompting, per-chunk JSON
// parsing, and cross-chunk deduplication with relationship id remapping.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"kgraph/internal/config"
	"kgraph/internal/logging"
)

// ChunkInput is the minimal per-chunk data the extractor needs.
type ChunkInput struct {
	Index   int
	Content string
}

// Context carries optional provenance fields folded into the prompt.
type Context struct {
	Filename   string
	DocumentID string
}

// ExtractedEntity is one entity surfaced from a chunk, before cross-chunk
// dedup assigns it a stable id.
type ExtractedEntity struct {
	TempID     string
	Name       string
	Label      string
	Properties map[string]any
}

// ExtractedRelationship references entities by TempID until dedup rewrites
// them to the deduplicated entity id space.
type ExtractedRelationship struct {
	Source     string
	Target     string
	Label      string
	Properties map[string]any
}

// Result is the de-duplicated extraction output for a whole document.
type Result struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
	TokensUsed    int
}

// Client is the subset of the Anthropic SDK the extractor depends on,
// narrowed so tests can supply a fake instead of a live API key.
type Client interface {
	Extract(ctx context.Context, systemPrompt, userMessage string) (text string, inputTokens, outputTokens int, err error)
}

type anthropicClient struct {
	sdk   anthropic.Client
	model string
}

// New builds an extraction Client from config. When cfg.Provider is not
// "anthropic" (no API key configured), it returns nil — callers must treat a
// nil Client as "extraction unconfigured" and skip the extraction phase.
func New(cfg config.ExtractionConfig) Client {
	if strings.ToLower(cfg.Provider) != "anthropic" || cfg.APIKey == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &anthropicClient{sdk: anthropic.NewClient(opts...), model: model}
}

func (c *anthropicClient) Extract(ctx context.Context, systemPrompt, userMessage string) (string, int, int, error) {
	resp, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage))},
	})
	if err != nil {
		return "", 0, 0, err
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), nil
}

// Extractor runs the per-chunk LLM calls and the cross-chunk dedup pass.
type Extractor struct {
	client Client
}

// NewExtractor builds an Extractor over client (may be nil — see New).
func NewExtractor(client Client) *Extractor { return &Extractor{client: client} }

// Configured reports whether an extraction provider is available.
func (e *Extractor) Configured() bool { return e.client != nil }

// Extract runs one LLM call per chunk, then deduplicates entities and
// relationships across all chunks. Malformed per-chunk JSON degrades to an
// empty entity/relationship list for that chunk and is logged, never
// returned as an error — a single bad chunk never aborts the document.
func (e *Extractor) Extract(ctx context.Context, chunks []ChunkInput, contentType string, chctx Context) (Result, error) {
	if e.client == nil {
		return Result{}, fmt.Errorf("extraction: no provider configured")
	}

	prompt := systemPromptFor(contentType)

	perChunk := make([]rawChunkResult, len(chunks))
	tokensUsed := 0

	for _, chunk := range chunks {
		userMsg := buildUserMessage(chunk, chctx)
		text, inTok, outTok, err := e.client.Extract(ctx, prompt, userMsg)
		tokensUsed += inTok + outTok
		if err != nil {
			logging.Log.WithError(err).WithField("chunk_index", chunk.Index).Warn("extraction call failed, skipping chunk")
			continue
		}
		parsed, err := parseResponse(text)
		if err != nil {
			logging.Log.WithError(err).WithField("chunk_index", chunk.Index).Warn("extraction response was not valid JSON, skipping chunk")
			continue
		}
		perChunk[chunk.Index] = rawChunkResult{entities: parsed.Entities, relationships: parsed.Relationships}
	}

	return deduplicate(chunks, perChunk, tokensUsed), nil
}

// --- wire parsing ---

type rawEntity struct {
	TempID     string         `json:"temp_id"`
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

type rawRelationship struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

type rawResponse struct {
	Entities      []rawEntity       `json:"entities"`
	Relationships []rawRelationship `json:"relationships"`
}

// rawChunkResult is the parsed, not-yet-deduplicated output of one chunk's
// extraction call, indexed by chunk index in Extract's perChunk slice.
type rawChunkResult struct {
	entities      []rawEntity
	relationships []rawRelationship
}

var fencedJSON = "```json"

func parseResponse(text string) (rawResponse, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, fencedJSON) {
		text = strings.TrimPrefix(text, fencedJSON)
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	text = strings.TrimSpace(text)

	var parsed rawResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return rawResponse{}, err
	}

	// Discard entities/relationships with empty mandatory fields.
	entities := parsed.Entities[:0:0]
	for _, e := range parsed.Entities {
		if e.Name != "" {
			entities = append(entities, e)
		}
	}
	rels := parsed.Relationships[:0:0]
	for _, r := range parsed.Relationships {
		if r.Source != "" && r.Target != "" {
			rels = append(rels, r)
		}
	}
	return rawResponse{Entities: entities, Relationships: rels}, nil
}

func buildUserMessage(chunk ChunkInput, c Context) string {
	var b strings.Builder
	if c.Filename != "" || c.DocumentID != "" {
		b.WriteString("Context: ")
		if c.Filename != "" {
			fmt.Fprintf(&b, "filename=%s ", c.Filename)
		}
		if c.DocumentID != "" {
			fmt.Fprintf(&b, "document_id=%s ", c.DocumentID)
		}
		b.WriteString("\n\n")
	}
	b.WriteString(chunk.Content)
	return b.String()
}

// deduplicate implements §4.5 step 2-4: prefix temp_ids with their chunk
// index, group by (lowercase name, label) keeping the most-uppercase-letters
// variant as the base, merge property bags, rewrite relationship endpoints
// through the old->new id map, drop self-relationships, and collapse
// duplicate (source, target, label) triples.
func deduplicate(chunks []ChunkInput, perChunk []rawChunkResult, tokensUsed int) Result {
	type prefixedEntity struct {
		oldID string
		rawEntity
	}
	var allEntities []prefixedEntity
	var allRels []rawRelationship

	for _, chunk := range chunks {
		pc := perChunk[chunk.Index]
		for _, e := range pc.entities {
			oldID := fmt.Sprintf("c%d_%s", chunk.Index, e.TempID)
			allEntities = append(allEntities, prefixedEntity{oldID: oldID, rawEntity: e})
		}
		for _, r := range pc.relationships {
			allRels = append(allRels, rawRelationship{
				Source: fmt.Sprintf("c%d_%s", chunk.Index, r.Source),
				Target: fmt.Sprintf("c%d_%s", chunk.Index, r.Target),
				Label:  r.Label, Properties: r.Properties,
			})
		}
	}

	type groupKey struct{ name, label string }
	groups := map[groupKey][]prefixedEntity{}
	var order []groupKey
	for _, e := range allEntities {
		key := groupKey{strings.ToLower(e.Name), e.Label}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	oldToNew := map[string]string{}
	var dedupedEntities []ExtractedEntity
	seq := 0
	for _, key := range order {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool {
			return uppercaseCount(members[i].Name) > uppercaseCount(members[j].Name)
		})
		base := members[0]
		newID := fmt.Sprintf("d%d", seq)
		seq++
		merged := map[string]any{}
		for _, m := range members {
			oldToNew[m.oldID] = newID
			for k, v := range m.Properties {
				if existing, ok := merged[k]; ok {
					merged[k] = mergeValue(existing, v)
				} else {
					merged[k] = v
				}
			}
		}
		dedupedEntities = append(dedupedEntities, ExtractedEntity{
			TempID: newID, Name: base.Name, Label: base.Label, Properties: merged,
		})
	}

	seenRel := map[string]int{} // (source,target,label) -> index into out
	var dedupedRels []ExtractedRelationship
	for _, r := range allRels {
		newSource, ok1 := oldToNew[r.Source]
		newTarget, ok2 := oldToNew[r.Target]
		if !ok1 || !ok2 {
			continue
		}
		if newSource == newTarget {
			continue
		}
		relKey := newSource + "|" + newTarget + "|" + r.Label
		if idx, ok := seenRel[relKey]; ok {
			for k, v := range r.Properties {
				if _, exists := dedupedRels[idx].Properties[k]; !exists {
					if dedupedRels[idx].Properties == nil {
						dedupedRels[idx].Properties = map[string]any{}
					}
					dedupedRels[idx].Properties[k] = v
				}
			}
			continue
		}
		seenRel[relKey] = len(dedupedRels)
		dedupedRels = append(dedupedRels, ExtractedRelationship{
			Source: newSource, Target: newTarget, Label: r.Label, Properties: r.Properties,
		})
	}

	return Result{Entities: dedupedEntities, Relationships: dedupedRels, TokensUsed: tokensUsed}
}

func uppercaseCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			n++
		}
	}
	return n
}

// mergeValue implements the property-merge rule: same-key scalars that
// differ coerce into a list of both values; list-valued keys union as sets,
// re-listed; first-seen wins when values are equal.
func mergeValue(existing, incoming any) any {
	existingList, existingIsList := existing.([]any)
	incomingList, incomingIsList := incoming.([]any)

	if existingIsList || incomingIsList {
		set := map[string]any{}
		var order []string
		add := func(v any) {
			key := fmt.Sprintf("%v", v)
			if _, ok := set[key]; !ok {
				order = append(order, key)
				set[key] = v
			}
		}
		if existingIsList {
			for _, v := range existingList {
				add(v)
			}
		} else {
			add(existing)
		}
		if incomingIsList {
			for _, v := range incomingList {
				add(v)
			}
		} else {
			add(incoming)
		}
		out := make([]any, len(order))
		for i, k := range order {
			out[i] = set[k]
		}
		return out
	}

	if fmt.Sprintf("%v", existing) == fmt.Sprintf("%v", incoming) {
		return existing
	}
	return []any{existing, incoming}
}
