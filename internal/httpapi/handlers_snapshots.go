package httpapi

import (
	"encoding/json"
	"net/http"

	"kgraph/internal/snapshot"
)

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body struct {
		Label string `json:"label"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	created, err := s.svc.Snapshots.Create(r.Context(), p.ID, p.GraphName, body.Label, snapshot.TriggerManual)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", snapshot.MaxSnapshotsPerProject)
	list, err := s.svc.Snapshots.List(r.Context(), p.ID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"snapshots": list})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.projectBySlug(w, r); !ok {
		return
	}
	snap, err := s.svc.Snapshots.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.projectBySlug(w, r); !ok {
		return
	}
	if err := s.svc.Snapshots.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	result, err := s.svc.Snapshots.Restore(r.Context(), r.PathValue("id"), p.ID, p.GraphName)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
