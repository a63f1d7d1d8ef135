package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"kgraph/internal/documents"
)

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		Filename    string                `json:"filename"`
		ContentType documents.ContentType `json:"content_type"`
		SourceURL   string                `json:"source_url"`
		RawContent  string                `json:"raw_content"`
		Metadata    documents.Metadata    `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	created, err := s.svc.Documents.Create(r.Context(), documents.Document{
		ProjectID:   p.ID,
		Filename:    body.Filename,
		ContentType: body.ContentType,
		SourceURL:   body.SourceURL,
		RawContent:  body.RawContent,
		Metadata:    body.Metadata,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	list, err := s.svc.Documents.List(r.Context(), p.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": list})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	doc, err := s.svc.Documents.Get(r.Context(), p.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	if err := s.svc.Documents.Delete(r.Context(), p.ID, p.Slug, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	start := time.Now()
	result, err := s.svc.Ingestion.ProcessDocument(r.Context(), p.ID, p.Slug, p.GraphName, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	s.svc.Telemetry.Record(r.Context(), telemetryIngestionEvent(p.Slug, time.Since(start).Milliseconds(), result.ChunksCreated))
	respondJSON(w, http.StatusOK, result)
}
