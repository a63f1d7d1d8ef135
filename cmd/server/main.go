// Command server boots the knowledge-graph service: Postgres-backed project
// and document metadata, an Apache AGE graph per project, a Qdrant
// collection per project, and the /api/v1 HTTP surface tying them together.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kgraph/internal/authverify"
	"kgraph/internal/chunking"
	"kgraph/internal/config"
	"kgraph/internal/documents"
	"kgraph/internal/embedding"
	"kgraph/internal/events"
	"kgraph/internal/extraction"
	"kgraph/internal/fetch"
	"kgraph/internal/graph"
	"kgraph/internal/httpapi"
	"kgraph/internal/ingestion"
	"kgraph/internal/logging"
	"kgraph/internal/projects"
	"kgraph/internal/ratelimit"
	"kgraph/internal/search"
	"kgraph/internal/snapshot"
	"kgraph/internal/store"
	"kgraph/internal/telemetry"
	"kgraph/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	if cfg.Postgres.DSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	db, err := store.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	vectors, err := vectorstore.Open(cfg.Qdrant.DSN, cfg.Embedding.Dimension)
	if err != nil {
		log.Fatalf("open qdrant: %v", err)
	}
	defer vectors.Close()

	projectRows := projects.NewRowStore(db)
	if err := projectRows.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure projects schema: %v", err)
	}
	documentRows := documents.NewRowStore(db)
	if err := documentRows.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure documents schema: %v", err)
	}
	snapshotRows := snapshot.NewRowStore(db)
	if err := snapshotRows.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure snapshots schema: %v", err)
	}

	eventPublisher := events.New(cfg.Kafka)
	defer eventPublisher.Close()

	limiter := ratelimit.New(cfg.Redis)
	defer limiter.Close()

	telemetrySink, err := telemetry.Open(ctx, cfg.ClickHouse)
	if err != nil {
		log.Fatalf("open clickhouse telemetry: %v", err)
	}
	defer telemetrySink.Close()

	archiver, err := snapshot.OpenArchiver(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("open snapshot archiver: %v", err)
	}

	embedder := embedding.New(cfg.Embedding)
	extractClient := extraction.New(cfg.Extraction)
	extractor := extraction.NewExtractor(extractClient)

	graphSvc := graph.New(db)
	documentSvc := documents.New(documentRows, vectors)
	projectSvc := projects.New(projectRows, graphSvc, vectors, documentSvc, eventPublisher)
	searchSvc := search.New(embedder, vectorAdapter{vectors}, graphSvc)
	snapshotSvc := snapshot.New(snapshotRows, graphSvc, eventPublisher, archiver)

	ingestionSvc := ingestion.New(
		documentRows,
		embedder,
		vectorAdapter{vectors},
		graphSvc,
		extractor,
		fetchAdapter{},
		eventPublisher,
		limiter,
		chunking.Config{ChunkSize: cfg.Chunking.ChunkSize, ChunkOverlap: cfg.Chunking.ChunkOverlap},
	)

	verifier := authverify.New(cfg.JWTSecret)

	httpSrv := httpapi.NewServer(&httpapi.Services{
		Projects:  projectSvc,
		Documents: documentSvc,
		Ingestion: ingestionSvc,
		Graph:     graphSvc,
		Search:    searchSvc,
		Snapshots: snapshotSvc,
		Embedder:  embedder,
		Auth:      verifier,
		Telemetry: telemetrySink,
		Version:   "0.1.0",
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpSrv}

	go func() {
		logging.Log.WithField("addr", cfg.HTTPAddr).Info("kgraph listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Log.WithError(err).Warn("graceful shutdown failed")
	} else {
		logging.Log.Info("kgraph stopped")
	}
}

// vectorAdapter narrows *vectorstore.Store to the ingestion.Vectors and
// search.VectorSearcher shapes so those packages need not import the
// Qdrant-specific vectorstore package.
type vectorAdapter struct {
	store *vectorstore.Store
}

func (a vectorAdapter) UpsertChunks(ctx context.Context, projectSlug string, points []ingestion.VectorPoint) (int, error) {
	converted := make([]vectorstore.Point, len(points))
	for i, p := range points {
		converted[i] = vectorstore.Point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	return a.store.UpsertChunks(ctx, projectSlug, converted)
}

func (a vectorAdapter) DeleteByDocument(ctx context.Context, projectSlug, documentID string) (int, error) {
	return a.store.DeleteByDocument(ctx, projectSlug, documentID)
}

func (a vectorAdapter) Search(ctx context.Context, projectSlug string, vector []float32, limit int, contentTypes []string) ([]search.VectorHit, error) {
	hits, err := a.store.Search(ctx, projectSlug, vector, limit, contentTypes)
	if err != nil {
		return nil, err
	}
	out := make([]search.VectorHit, len(hits))
	for i, h := range hits {
		out[i] = search.VectorHit{ID: h.ID, Score: h.Score, Payload: h.Payload}
	}
	return out, nil
}

// fetchAdapter exposes the package-level internal/fetch.Fetch function as
// ingestion.Fetcher.
type fetchAdapter struct{}

func (fetchAdapter) Fetch(ctx context.Context, rawURL string) (ingestion.FetchResult, error) {
	result, err := fetch.Fetch(ctx, rawURL)
	if err != nil {
		return ingestion.FetchResult{}, err
	}
	return ingestion.FetchResult{Title: result.Title, Markdown: result.Markdown}, nil
}
