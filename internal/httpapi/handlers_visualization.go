package httpapi

import (
	"net/http"
	"strings"
)

func (s *Server) handleVisualizationGraph(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 200)
	var types []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = strings.Split(raw, ",")
	}

	if focus := r.URL.Query().Get("focus"); focus != "" {
		depth := queryInt(r, "depth", 2)
		local, err := s.svc.Graph.GetLocalGraph(r.Context(), p.GraphName, focus, depth)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, local)
		return
	}

	full, err := s.svc.Graph.GetFullGraph(r.Context(), p.GraphName, limit, types)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, full)
}

func (s *Server) handleVisualizationLocalGraph(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	depth := queryInt(r, "depth", 2)
	local, err := s.svc.Graph.GetLocalGraph(r.Context(), p.GraphName, r.PathValue("id"), depth)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, local)
}
