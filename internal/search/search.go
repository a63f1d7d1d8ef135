// Package search implements the hybrid query engine: per-project vector ∪
// graph text search, and a cross-tenant fan-out that reuses a single query
// embedding across every project it searches.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"kgraph/internal/graph"
	"kgraph/internal/logging"
)

// Mode selects which retrieval paths a search runs.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeGraph  Mode = "graph"
	ModeHybrid Mode = "hybrid"
)

func (m Mode) wantsVector() bool { return m == ModeVector || m == ModeHybrid || m == "" }
func (m Mode) wantsGraph() bool  { return m == ModeGraph || m == ModeHybrid || m == "" }

// Result is one hit, whichever path it came from.
type Result struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "chunk" or "entity"
	Label   string `json:"label"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Score   float64 `json:"score"`
	Source  string `json:"source"` // "vector" or "graph"
	Project string `json:"project,omitempty"`
}

// Stats accompanies a per-project search response.
type Stats struct {
	VectorHits  int   `json:"vector_hits"`
	GraphHits   int   `json:"graph_hits"`
	TotalTimeMS int64 `json:"total_time_ms"`
}

// Query is a per-project search request.
type Query struct {
	Text      string
	Mode      Mode
	Types     []string // graph-path label restriction
	Limit     int
	Embedding []float32 // reused across a fan-out; computed if nil and mode needs it
}

// Response is a per-project search result.
type Response struct {
	Results []Result `json:"results"`
	Stats   Stats    `json:"stats"`
}

// Embedder is the subset of internal/embedding.Gateway search needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// VectorHit mirrors vectorstore.SearchHit; the cmd/server wiring layer
// adapts internal/vectorstore.Store.Search to this shape so this package
// does not need to depend on the Qdrant-specific vectorstore package.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorSearcher is the subset of internal/vectorstore.Store search needs.
type VectorSearcher interface {
	Search(ctx context.Context, projectSlug string, vector []float32, limit int, contentTypes []string) ([]VectorHit, error)
}

// GraphTextSearcher is the subset of internal/graph.Service search needs.
type GraphTextSearcher interface {
	SearchText(ctx context.Context, graphName, query string, labels []string, limit int) ([]graph.Entity, error)
}

// Service runs hybrid search for one project per call; fan-out runs one such
// call per project via the ProjectSearcher function type below.
type Service struct {
	embedder Embedder
	vectors  VectorSearcher
	graphs   GraphTextSearcher
}

func New(embedder Embedder, vectors VectorSearcher, graphs GraphTextSearcher) *Service {
	return &Service{embedder: embedder, vectors: vectors, graphs: graphs}
}

// Search runs the per-project hybrid query described in spec §4.7.
func (s *Service) Search(ctx context.Context, projectSlug, graphName string, q Query) (Response, error) {
	start := time.Now()
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var vectorResults []Result
	var graphResults []Result

	if q.Mode.wantsVector() {
		vec := q.Embedding
		if vec == nil {
			vecs := s.embedder.EmbedBatch(ctx, []string{q.Text})
			if len(vecs) > 0 {
				vec = vecs[0]
			}
		}
		hits, err := s.vectors.Search(ctx, projectSlug, vec, limit, nil)
		if err != nil {
			logging.Log.WithError(err).WithField("project", projectSlug).Warn("vector search failed")
		}
		for _, h := range hits {
			content, _ := h.Payload["content"].(string)
			idx, _ := h.Payload["chunk_index"].(float64)
			vectorResults = append(vectorResults, Result{
				ID:      "chunk_" + h.ID,
				Type:    "chunk",
				Label:   "Chunk",
				Name:    fmt.Sprintf("Chunk %d", int(idx)),
				Content: truncate(content, 500),
				Score:   h.Score,
				Source:  "vector",
			})
		}
	}

	if q.Mode.wantsGraph() {
		entities, err := s.graphs.SearchText(ctx, graphName, q.Text, q.Types, limit)
		if err != nil {
			logging.Log.WithError(err).WithField("project", projectSlug).Warn("graph text search failed")
		}
		for _, e := range entities {
			content, _ := e.Properties["description"].(string)
			if content == "" {
				content = e.Name
			}
			graphResults = append(graphResults, Result{
				ID:      fmt.Sprintf("%d", e.ID),
				Type:    "entity",
				Label:   normalizeLabel(e.Type),
				Name:    e.Name,
				Content: content,
				Score:   1.0,
				Source:  "graph",
			})
		}
	}

	merged := mergeDedup(append(vectorResults, graphResults...))
	if len(merged) > limit {
		merged = merged[:limit]
	}

	return Response{
		Results: merged,
		Stats: Stats{
			VectorHits:  len(vectorResults),
			GraphHits:   len(graphResults),
			TotalTimeMS: time.Since(start).Milliseconds(),
		},
	}, nil
}

// mergeDedup sorts by score descending and keeps the first occurrence of
// each id.
func mergeDedup(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func normalizeLabel(label string) string {
	if label == "" {
		return "Unknown"
	}
	return label
}

// FanoutProject identifies one project a fan-out search targets.
type FanoutProject struct {
	Slug      string
	GraphName string
}

// ProjectSearcher runs one project's search for a fan-out task. The
// caller (internal/httpapi) supplies this so the search package does not
// need to depend on internal/projects for project lookup.
type ProjectSearcher func(ctx context.Context, p FanoutProject, q Query) (Response, error)

// ProjectStat is one project's contribution to a fan-out response.
type ProjectStat struct {
	Project     string `json:"project"`
	ResultCount int    `json:"result_count"`
}

// FanoutResponse is the response of a cross-tenant fan-out search.
type FanoutResponse struct {
	Results         []Result      `json:"results"`
	Total           int           `json:"total"`
	ProjectsSearched int          `json:"projects_searched"`
	ProjectStats    []ProjectStat `json:"project_stats"`
}

// maxFanoutParallel bounds the number of concurrent per-project searches so
// a large project count cannot exhaust file descriptors / connections.
const maxFanoutParallel = 8

// Fanout searches every supplied project in parallel, embedding the query
// exactly once and reusing that vector across every per-project task. A
// single project's failure degrades to an empty result list for that
// project and never fails the whole fan-out.
func Fanout(ctx context.Context, embedder Embedder, projects []FanoutProject, text string, mode Mode, types []string, limit int, search ProjectSearcher) (FanoutResponse, error) {
	if len(projects) == 0 {
		return FanoutResponse{Results: []Result{}, ProjectStats: []ProjectStat{}}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var embedding []float32
	if mode.wantsVector() {
		vecs := embedder.EmbedBatch(ctx, []string{text})
		if len(vecs) > 0 {
			embedding = vecs[0]
		}
	}

	type taskResult struct {
		project string
		resp    Response
	}

	results := make([]taskResult, len(projects))
	sem := semaphore.NewWeighted(maxFanoutParallel)
	var wg sync.WaitGroup
	for i, p := range projects {
		wg.Add(1)
		go func(i int, p FanoutProject) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			resp, err := search(ctx, p, Query{Text: text, Mode: mode, Types: types, Limit: limit, Embedding: embedding})
			if err != nil {
				logging.Log.WithError(err).WithField("project", p.Slug).Warn("fan-out per-project search failed")
				resp = Response{Results: []Result{}}
			}
			results[i] = taskResult{project: p.Slug, resp: resp}
		}(i, p)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var all []Result
	stats := make([]ProjectStat, 0, len(projects))
	for _, tr := range results {
		count := 0
		for _, r := range tr.resp.Results {
			r.Project = tr.project
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			all = append(all, r)
			count++
		}
		stats = append(stats, ProjectStat{Project: tr.project, ResultCount: count})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > limit {
		all = all[:limit]
	}

	return FanoutResponse{
		Results:          all,
		Total:            len(all),
		ProjectsSearched: len(projects),
		ProjectStats:     stats,
	}, nil
}

// ContainsQuery lowercases s for a case-insensitive substring match, the same
// lowering graph.Service.SearchText applies on its own.
func ContainsQuery(s string) string { return strings.ToLower(s) }
