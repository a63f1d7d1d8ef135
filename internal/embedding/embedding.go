// Package embedding turns chunk text into vectors through a pluggable
// provider (OpenAI primary, Gemini as an alternate), falling back to a
// zero vector per item when no provider is configured or a call fails, so
// ingestion never blocks on an embedding outage.
package embedding

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"kgraph/internal/config"
	"kgraph/internal/logging"
)

// Provider embeds a batch of texts into equal-length float32 vectors,
// preserving input order.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Gateway is the embedding entry point every ingestion/search caller uses.
// It never returns an error: a provider failure for one text degrades that
// text to a zero vector and is logged, so a single bad chunk never aborts a
// whole document's ingestion.
type Gateway struct {
	provider  Provider
	dimension int
	// concurrency bounds simultaneous in-flight provider calls when a batch
	// is split into per-item requests.
	concurrency int
}

// New builds a Gateway from config. With no provider configured, calls
// degrade straight to zero vectors (dimension still reported so collection
// creation has a consistent vector size).
func New(cfg config.EmbeddingConfig) *Gateway {
	var provider Provider
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		provider = newOpenAIProvider(cfg)
	case "gemini":
		if gp := newGeminiProvider(cfg); gp != nil {
			provider = gp
		}
	default:
		logging.Log.WithField("provider", cfg.Provider).Warn("no embedding provider configured, using zero vectors")
	}
	return &Gateway{provider: provider, dimension: cfg.Dimension, concurrency: 5}
}

func (g *Gateway) Dimension() int { return g.dimension }

// EmbedBatch returns one vector per input text, in order. Texts that are too
// short to carry meaning (after trimming) skip the provider call entirely.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	results := make([][]float32, len(texts))
	if g.provider == nil {
		for i := range texts {
			results[i] = g.zeroVector()
		}
		return results
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, g.concurrency)
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if len(strings.TrimSpace(text)) < 10 {
				results[i] = g.zeroVector()
				return
			}
			vecs, err := g.provider.EmbedBatch(ctx, []string{text})
			if err != nil || len(vecs) == 0 {
				logging.Log.WithError(err).WithField("index", i).Warn("embedding failed, using zero vector")
				results[i] = g.zeroVector()
				return
			}
			results[i] = vecs[0]
		}(i, text)
	}
	wg.Wait()
	return results
}

func (g *Gateway) zeroVector() []float32 {
	dim := g.dimension
	if g.provider != nil {
		dim = g.provider.Dimension()
	}
	if dim <= 0 {
		dim = 1536
	}
	return make([]float32, dim)
}

type openAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

func newOpenAIProvider(cfg config.EmbeddingConfig) *openAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return &openAIProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}
}

func (p *openAIProvider) Dimension() int { return p.dimension }

func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: p.model,
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

type geminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
}

func newGeminiProvider(cfg config.EmbeddingConfig) *geminiProvider {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.Gemini.APIKey})
	if err != nil {
		logging.Log.WithError(err).Error("failed to create gemini client, embeddings will fall back to zero vectors")
		return nil
	}
	return &geminiProvider{client: client, model: cfg.Model, dimension: cfg.Dimension}
}

func (p *geminiProvider) Dimension() int { return p.dimension }

func (p *geminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
