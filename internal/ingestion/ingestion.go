// Package ingestion orchestrates the document processing pipeline: chunk,
// embed, index, and best-effort extract into the property graph. It is the
// single place that ties internal/chunking, internal/embedding,
// internal/vectorstore, internal/extraction, internal/documents, and
// internal/graph together into one idempotent per-document operation.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"kgraph/internal/chunking"
	"kgraph/internal/documents"
	"kgraph/internal/extraction"
	"kgraph/internal/graph"
	"kgraph/internal/logging"
)

// Embedder is the subset of internal/embedding.Gateway ingestion needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Vectors is the subset of internal/vectorstore.Store ingestion needs.
type Vectors interface {
	UpsertChunks(ctx context.Context, projectSlug string, points []VectorPoint) (int, error)
	DeleteByDocument(ctx context.Context, projectSlug, documentID string) (int, error)
}

// VectorPoint mirrors vectorstore.Point to avoid a hard type alias — kept as
// a distinct named type here so ingestion does not need to import the
// vectorstore package's Qdrant-specific construction details, only its
// wire shape.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// GraphEntities is the subset of internal/graph.Service ingestion's
// extraction phase needs.
type GraphEntities interface {
	UpsertEntity(ctx context.Context, graphName string, in graph.EntityInput, description string) (graph.UpsertResult, error)
	CreateRelationship(ctx context.Context, graphName string, in graph.RelationshipInput) (graph.Relationship, error)
}

// Extractor is the subset of internal/extraction's Extractor ingestion needs.
type Extractor interface {
	Configured() bool
	Extract(ctx context.Context, chunks []extraction.ChunkInput, contentType string, chctx extraction.Context) (extraction.Result, error)
}

// DocumentStore is the persistence surface ingestion drives.
type DocumentStore interface {
	Get(ctx context.Context, projectID, id string) (documents.Document, error)
	DeleteChunks(ctx context.Context, documentID string) error
	InsertChunk(ctx context.Context, c documents.Chunk) (documents.Chunk, error)
	MarkProcessed(ctx context.Context, id string, errMsg string) error
	SetError(ctx context.Context, id string, errMsg string) error
	SetRawContent(ctx context.Context, id, rawContent string) error
}

// Fetcher resolves a document's source_url into content, per
// internal/fetch.Fetch.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// FetchResult mirrors fetch.Result.
type FetchResult struct {
	Title    string
	Markdown string
}

// EventPublisher is the subset of internal/events.Publisher ingestion emits
// on.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any)
}

// RateLimiter is the subset of internal/ratelimit.Limiter ingestion throttles
// the extraction phase's upstream LLM calls with. A nil RateLimiter (or one
// that always allows) leaves extraction ungated.
type RateLimiter interface {
	Allow(ctx context.Context, upstream string, limit int) bool
}

// extractionRateLimit caps extraction calls per limiter window; exceeding it
// degrades extraction the same way an unconfigured extractor would, never
// failing the ingest.
const extractionRateLimit = 60

// Service runs the document ingestion pipeline.
type Service struct {
	docs      DocumentStore
	embedder  Embedder
	vectors   Vectors
	graphSvc  GraphEntities
	extractor Extractor
	fetcher   Fetcher
	events    EventPublisher
	limiter   RateLimiter
	chunkCfg  chunking.Config
}

func New(docs DocumentStore, embedder Embedder, vectors Vectors, graphSvc GraphEntities, extractor Extractor, fetcher Fetcher, events EventPublisher, limiter RateLimiter, chunkCfg chunking.Config) *Service {
	return &Service{docs: docs, embedder: embedder, vectors: vectors, graphSvc: graphSvc, extractor: extractor, fetcher: fetcher, events: events, limiter: limiter, chunkCfg: chunkCfg}
}

// Result is the response shape for a process_document call.
type Result struct {
	DocumentID            string `json:"document_id"`
	ChunksCreated         int    `json:"chunks_created"`
	EntitiesExtracted     int    `json:"entities_extracted"`
	RelationshipsCreated  int    `json:"relationships_created"`
	DurationMS            int64  `json:"duration_ms"`
}

// ProcessDocument re-chunks, re-embeds, and re-indexes a document from
// scratch, then runs a best-effort extraction pass. Re-running on an
// already-processed document is idempotent: prior chunk rows and vector
// points are cleared first so the result always reflects a single coherent
// pass over the document's current content.
func (s *Service) ProcessDocument(ctx context.Context, projectID, projectSlug, graphName, documentID string) (Result, error) {
	start := time.Now()
	doc, err := s.docs.Get(ctx, projectID, documentID)
	if err != nil {
		return Result{}, err
	}

	if doc.RawContent == "" && doc.SourceURL != "" && s.fetcher != nil {
		fetched, ferr := s.fetcher.Fetch(ctx, doc.SourceURL)
		if ferr != nil {
			if setErr := s.docs.SetError(ctx, documentID, ferr.Error()); setErr != nil {
				logging.Log.WithError(setErr).Warn("failed to record fetch error on document")
			}
			return Result{}, ferr
		}
		if err := s.docs.SetRawContent(ctx, documentID, fetched.Markdown); err != nil {
			return Result{}, err
		}
		doc.RawContent = fetched.Markdown
	}

	if _, err := s.vectors.DeleteByDocument(ctx, projectSlug, documentID); err != nil {
		logging.Log.WithError(err).WithField("document_id", documentID).Warn("vector point reset failed before re-processing")
	}
	if err := s.docs.DeleteChunks(ctx, documentID); err != nil {
		return Result{}, err
	}

	chunks := chunking.Split(doc.RawContent, s.chunkCfg)
	if len(chunks) == 0 {
		if err := s.docs.SetError(ctx, documentID, "document has no content to chunk"); err != nil {
			logging.Log.WithError(err).Warn("failed to record empty-content error on document")
		}
		return Result{}, fmt.Errorf("document %s has no content to chunk", documentID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors := s.embedder.EmbedBatch(ctx, texts)

	storedChunks := make([]documents.Chunk, 0, len(chunks))
	points := make([]VectorPoint, 0, len(chunks))
	for i, c := range chunks {
		stored, err := s.docs.InsertChunk(ctx, documents.Chunk{
			DocumentID: documentID,
			Content:    c.Content,
			ChunkIndex: c.Index,
			TokenCount: c.TokenCount,
			Metadata: documents.Metadata{
				"start_char": c.StartChar,
				"end_char":   c.EndChar,
			},
		})
		if err != nil {
			return Result{}, err
		}
		storedChunks = append(storedChunks, stored)
		points = append(points, VectorPoint{
			ID:     stored.VectorPointID,
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_id":     stored.ID,
				"document_id":  documentID,
				"chunk_index":  c.Index,
				"content":      c.Content,
				"content_type": string(doc.ContentType),
				"metadata":     stored.Metadata,
			},
		})
	}

	if _, err := s.vectors.UpsertChunks(ctx, projectSlug, points); err != nil {
		if setErr := s.docs.SetError(ctx, documentID, err.Error()); setErr != nil {
			logging.Log.WithError(setErr).Warn("failed to record vector upsert error on document")
		}
		return Result{}, err
	}

	entitiesExtracted, relationshipsCreated := s.runExtraction(ctx, graphName, doc, storedChunks)

	if err := s.docs.MarkProcessed(ctx, documentID, ""); err != nil {
		return Result{}, err
	}

	if s.events != nil {
		s.events.Publish(ctx, "document.processed", documentID, map[string]any{
			"document_id":           documentID,
			"project_id":            projectID,
			"chunks_created":        len(storedChunks),
			"entities_extracted":    entitiesExtracted,
			"relationships_created": relationshipsCreated,
		})
	}

	return Result{
		DocumentID:           documentID,
		ChunksCreated:        len(storedChunks),
		EntitiesExtracted:    entitiesExtracted,
		RelationshipsCreated: relationshipsCreated,
		DurationMS:           time.Since(start).Milliseconds(),
	}, nil
}

// runExtraction is best-effort: an unconfigured extractor or a failed LLM
// call means zero entities/relationships, never an aborted ingestion.
func (s *Service) runExtraction(ctx context.Context, graphName string, doc documents.Document, chunks []documents.Chunk) (int, int) {
	if s.extractor == nil || !s.extractor.Configured() {
		return 0, 0
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, "extraction", extractionRateLimit) {
		logging.Log.WithField("document_id", doc.ID).Warn("extraction rate limit exceeded, continuing without graph entities")
		return 0, 0
	}

	inputs := make([]extraction.ChunkInput, len(chunks))
	for i, c := range chunks {
		inputs[i] = extraction.ChunkInput{Index: c.ChunkIndex, Content: c.Content}
	}

	result, err := s.extractor.Extract(ctx, inputs, string(doc.ContentType), extraction.Context{
		Filename: doc.Filename, DocumentID: doc.ID,
	})
	if err != nil {
		logging.Log.WithError(err).WithField("document_id", doc.ID).Warn("extraction phase failed, continuing without graph entities")
		return 0, 0
	}

	idMap := make(map[string]string, len(result.Entities))
	entitiesCreated := 0
	for _, e := range result.Entities {
		props := graph.Properties{}
		for k, v := range e.Properties {
			props[k] = v
		}
		props["document_id"] = doc.ID
		props["source"] = doc.Filename
		created, err := s.graphSvc.UpsertEntity(ctx, graphName, graph.EntityInput{
			Name: e.Name, Type: graph.EntityLabel(e.Label), Properties: props,
		}, "extracted during document ingestion")
		if err != nil {
			logging.Log.WithError(err).WithField("entity", e.Name).Warn("failed to upsert extracted entity")
			continue
		}
		idMap[e.TempID] = created.ID
		entitiesCreated++
	}

	relationshipsCreated := 0
	for _, r := range result.Relationships {
		sourceID, ok1 := idMap[r.Source]
		targetID, ok2 := idMap[r.Target]
		if !ok1 || !ok2 {
			continue
		}
		if _, err := s.graphSvc.CreateRelationship(ctx, graphName, graph.RelationshipInput{
			SourceID: sourceID, TargetID: targetID, Type: graph.RelationshipLabel(r.Label), Properties: graph.Properties(r.Properties),
		}); err != nil {
			logging.Log.WithError(err).WithField("source", r.Source).WithField("target", r.Target).Warn("failed to create extracted relationship")
			continue
		}
		relationshipsCreated++
	}

	return entitiesCreated, relationshipsCreated
}
