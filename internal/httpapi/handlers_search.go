package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kgraph/internal/search"
)

type searchRequestWire struct {
	Query string   `json:"query"`
	Mode  string   `json:"mode"`
	Types []string `json:"types"`
	Limit int      `json:"limit"`
}

func (s *Server) handleProjectSearch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectBySlug(w, r)
	if !ok {
		return
	}
	var body searchRequestWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	start := time.Now()
	resp, err := s.svc.Search.Search(r.Context(), p.Slug, p.GraphName, search.Query{
		Text: body.Query, Mode: search.Mode(body.Mode), Types: body.Types, Limit: body.Limit,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	s.svc.Telemetry.Record(r.Context(), telemetrySearchEvent(p.Slug, time.Since(start).Milliseconds(), len(resp.Results), body.Mode))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFanoutSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	all, err := s.svc.Projects.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	targets := make([]search.FanoutProject, len(all))
	for i, p := range all {
		targets[i] = search.FanoutProject{Slug: p.Slug, GraphName: p.GraphName}
	}

	searchOne := func(ctx context.Context, fp search.FanoutProject, q search.Query) (search.Response, error) {
		return s.svc.Search.Search(ctx, fp.Slug, fp.GraphName, q)
	}

	resp, err := search.Fanout(r.Context(), s.svc.Embedder, targets, body.Query, search.Mode(body.Mode), body.Types, body.Limit, searchOne)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
