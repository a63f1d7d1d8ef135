// Package httpapi wires every service in the core (project namespace,
// documents, ingestion, graph, search, snapshot, forward-auth) into one
// JSON/HTTP surface under /api/v1, replacing the teacher's dynamic
// request-dispatch-tied-to-runtime-state pattern with an explicit service
// bundle constructed once at startup.
package httpapi

import (
	"net/http"

	"kgraph/internal/authverify"
	"kgraph/internal/documents"
	"kgraph/internal/graph"
	"kgraph/internal/ingestion"
	"kgraph/internal/projects"
	"kgraph/internal/search"
	"kgraph/internal/snapshot"
	"kgraph/internal/telemetry"
)

// Services bundles every collaborator a handler needs. One instance is
// built at process startup and passed by reference into the server; no
// handler reaches for a process-global singleton.
type Services struct {
	Projects  *projects.Service
	Documents *documents.Service
	Ingestion *ingestion.Service
	Graph     *graph.Service
	Search    *search.Service
	Snapshots *snapshot.Service
	Embedder  search.Embedder
	Auth      *authverify.Verifier
	Telemetry *telemetry.Sink
	Version   string
}

// Server exposes the /api/v1 JSON surface plus the /auth/verify forward-auth
// endpoint and /health.
type Server struct {
	svc *Services
	mux *http.ServeMux
}

// NewServer builds a Server wired to svc and registers every route.
func NewServer(svc *Services) *Server {
	s := &Server{svc: svc, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.svc.Auth != nil {
		s.mux.HandleFunc("GET /auth/verify", s.svc.Auth.Handler)
	}

	s.mux.HandleFunc("POST /api/v1/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}", s.handleGetProject)
	s.mux.HandleFunc("DELETE /api/v1/projects/{slug}", s.handleDeleteProject)

	s.mux.HandleFunc("POST /api/v1/projects/{slug}/documents", s.handleCreateDocument)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/documents", s.handleListDocuments)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /api/v1/projects/{slug}/documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("POST /api/v1/projects/{slug}/documents/{id}/process", s.handleProcessDocument)

	s.mux.HandleFunc("GET /api/v1/projects/{slug}/entities", s.handleListEntities)
	s.mux.HandleFunc("POST /api/v1/projects/{slug}/entities", s.handleCreateEntity)
	s.mux.HandleFunc("PUT /api/v1/projects/{slug}/entities", s.handleUpsertEntity)
	s.mux.HandleFunc("DELETE /api/v1/projects/{slug}/entities/batch", s.handleBatchDeleteEntities)
	s.mux.HandleFunc("POST /api/v1/projects/{slug}/entities/deduplicate", s.handleDeduplicateEntities)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/entities/find", s.handleFindEntity)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/entities/{id}", s.handleGetEntity)
	s.mux.HandleFunc("PATCH /api/v1/projects/{slug}/entities/{id}", s.handleUpdateEntity)
	s.mux.HandleFunc("DELETE /api/v1/projects/{slug}/entities/{id}", s.handleDeleteEntity)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/entities/{id}/relationships", s.handleGetEntityRelationships)

	s.mux.HandleFunc("GET /api/v1/projects/{slug}/relationships", s.handleListRelationships)
	s.mux.HandleFunc("POST /api/v1/projects/{slug}/relationships", s.handleCreateRelationship)

	s.mux.HandleFunc("POST /api/v1/projects/{slug}/query/cypher", s.handleCypherQuery)
	s.mux.HandleFunc("POST /api/v1/projects/{slug}/batch", s.handleBatchCreate)

	s.mux.HandleFunc("POST /api/v1/projects/{slug}/search", s.handleProjectSearch)
	s.mux.HandleFunc("POST /api/v1/search", s.handleFanoutSearch)

	s.mux.HandleFunc("GET /api/v1/projects/{slug}/visualization/graph", s.handleVisualizationGraph)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/visualization/graph/local/{id}", s.handleVisualizationLocalGraph)

	s.mux.HandleFunc("POST /api/v1/projects/{slug}/snapshots", s.handleCreateSnapshot)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/snapshots", s.handleListSnapshots)
	s.mux.HandleFunc("GET /api/v1/projects/{slug}/snapshots/{id}", s.handleGetSnapshot)
	s.mux.HandleFunc("DELETE /api/v1/projects/{slug}/snapshots/{id}", s.handleDeleteSnapshot)
	s.mux.HandleFunc("POST /api/v1/projects/{slug}/snapshots/{id}/restore", s.handleRestoreSnapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kgraph",
		"version": s.svc.Version,
	})
}
