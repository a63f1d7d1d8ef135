package httpapi

import (
	"encoding/json"
	"net/http"

	"kgraph/internal/graph"
)

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 100)
	rels, err := s.svc.Graph.ListRelationships(r.Context(), p.GraphName, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		SourceID   string         `json:"source_id"`
		TargetID   string         `json:"target_id"`
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	created, err := s.svc.Graph.CreateRelationship(r.Context(), p.GraphName, graph.RelationshipInput{
		SourceID: body.SourceID, TargetID: body.TargetID, Type: graph.RelationshipLabel(body.Type), Properties: graph.Properties(body.Properties),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}
