package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"kgraph/internal/apierr"
	"kgraph/internal/graph"
	"kgraph/internal/snapshot"
)

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	entities, err := s.svc.Graph.ListEntities(r.Context(), p.GraphName, r.URL.Query().Get("type"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body entityInputWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	created, err := s.svc.Graph.CreateEntity(r.Context(), p.GraphName, body.toInput())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpsertEntity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		entityInputWire
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	result, err := s.svc.Graph.UpsertEntity(r.Context(), p.GraphName, body.toInput(), body.Description)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	ent, err := s.svc.Graph.GetEntity(r.Context(), p.GraphName, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ent)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var updates graph.Properties
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ent, err := s.svc.Graph.UpdateEntity(r.Context(), p.GraphName, r.PathValue("id"), updates)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ent)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	deleted, err := s.svc.Graph.DeleteEntity(r.Context(), p.GraphName, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if !deleted {
		respondError(w, apierr.NotFound("entity not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFindEntity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		badRequest(w, "name query parameter is required")
		return
	}
	found, err := s.svc.Graph.FindEntityByName(r.Context(), p.GraphName, name, r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entities": found})
}

func (s *Server) handleGetEntityRelationships(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "all"
	}
	rows, err := s.svc.Graph.GetEntityRelationships(r.Context(), p.GraphName, r.PathValue("id"), direction, r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"relationships": rows})
}

// maxBatchDeleteEntities mirrors the batch-create caps: a request this
// large almost certainly indicates a scripting error, not a legitimate
// interactive cleanup.
const maxBatchDeleteEntities = 1000

func (s *Server) handleBatchDeleteEntities(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(body.IDs) == 0 {
		badRequest(w, "ids must not be empty")
		return
	}
	if len(body.IDs) > maxBatchDeleteEntities {
		badRequest(w, "too many ids in one batch delete")
		return
	}

	if _, err := s.svc.Snapshots.Create(r.Context(), p.ID, p.GraphName, "", snapshot.TriggerAutoPreDelete); err != nil {
		respondError(w, err)
		return
	}

	count, err := s.svc.Graph.BatchDelete(r.Context(), p.GraphName, body.IDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted_count": count})
}

func (s *Server) handleDeduplicateEntities(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		Type   string `json:"type"`
		DryRun bool   `json:"dry_run"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	groups, err := s.svc.Graph.FindDuplicates(r.Context(), p.GraphName, body.Type)
	if err != nil {
		respondError(w, err)
		return
	}
	if body.DryRun || len(groups) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"dry_run": body.DryRun, "duplicate_groups": groups, "merged": []any{}})
		return
	}

	if _, err := s.svc.Snapshots.Create(r.Context(), p.ID, p.GraphName, "", snapshot.TriggerAutoPreDedupe); err != nil {
		respondError(w, err)
		return
	}

	merged := make([]graph.MergeResult, 0, len(groups))
	for _, g := range groups {
		keepID, removeIDs := keeperAndRemovals(g)
		result, err := s.svc.Graph.MergeDuplicates(r.Context(), p.GraphName, keepID, removeIDs)
		if err != nil {
			respondError(w, err)
			return
		}
		merged = append(merged, result)
	}
	respondJSON(w, http.StatusOK, map[string]any{"dry_run": false, "duplicate_groups": groups, "merged": merged})
}

// keeperAndRemovals picks the lowest-id entity in a duplicate group as the
// recommended keeper (oldest), per spec §4.2.
func keeperAndRemovals(g graph.DuplicateGroup) (string, []string) {
	members := append([]graph.DuplicateEntity(nil), g.Duplicates...)
	sort.Slice(members, func(i, j int) bool {
		return idNum(members[i].ID) < idNum(members[j].ID)
	})
	keep := members[0].ID
	remove := make([]string, 0, len(members)-1)
	for _, m := range members[1:] {
		remove = append(remove, m.ID)
	}
	return keep, remove
}

func idNum(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// entityInputWire is the JSON shape for entity create/upsert bodies.
type entityInputWire struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

func (w entityInputWire) toInput() graph.EntityInput {
	return graph.EntityInput{Name: w.Name, Type: graph.EntityLabel(w.Type), Properties: graph.Properties(w.Properties)}
}
