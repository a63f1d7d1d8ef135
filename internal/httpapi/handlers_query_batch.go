package httpapi

import (
	"encoding/json"
	"net/http"

	"kgraph/internal/graph"
)

// maxBatchEntities and maxBatchRelationships are the wire caps spec §6
// requires a batch-create request to be rejected with 400 beyond.
const (
	maxBatchEntities      = 100
	maxBatchRelationships = 500
)

func (s *Server) handleCypherQuery(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rows, err := s.svc.Graph.ExecuteRawQuery(r.Context(), p.GraphName, body.Query)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		Entities []struct {
			Ref         string         `json:"ref"`
			Name        string         `json:"name"`
			Type        string         `json:"type"`
			Description string         `json:"description"`
			Properties  map[string]any `json:"properties"`
		} `json:"entities"`
		Relationships []struct {
			From       string         `json:"from"`
			To         string         `json:"to"`
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
		} `json:"relationships"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(body.Entities) > maxBatchEntities {
		badRequest(w, "batch create accepts at most 100 entities per request")
		return
	}
	if len(body.Relationships) > maxBatchRelationships {
		badRequest(w, "batch create accepts at most 500 relationships per request")
		return
	}

	entities := make([]graph.BatchEntity, len(body.Entities))
	for i, e := range body.Entities {
		entities[i] = graph.BatchEntity{Ref: e.Ref, Name: e.Name, Type: graph.EntityLabel(e.Type), Description: e.Description, Properties: graph.Properties(e.Properties)}
	}
	relationships := make([]graph.BatchRelationship, len(body.Relationships))
	for i, rel := range body.Relationships {
		relationships[i] = graph.BatchRelationship{FromRef: rel.From, ToRef: rel.To, Type: graph.RelationshipLabel(rel.Type), Properties: graph.Properties(rel.Properties)}
	}

	result, err := s.svc.Graph.BatchCreate(r.Context(), p.GraphName, entities, relationships)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
