package httpapi

import (
	"encoding/json"
	"net/http"

	"kgraph/internal/projects"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Settings    projects.Settings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	created, err := s.svc.Projects.Create(r.Context(), body.Name, body.Description, body.Settings)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Projects.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": list})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Projects.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Projects.Delete(r.Context(), r.PathValue("slug")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// projectBySlug resolves the {slug} path segment to its full project row,
// writing the appropriate error response and reporting false if it fails.
func (s *Server) projectBySlug(w http.ResponseWriter, r *http.Request) (projects.Project, bool) {
	p, err := s.svc.Projects.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		respondError(w, err)
		return projects.Project{}, false
	}
	return p, true
}
