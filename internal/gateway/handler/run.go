package handler

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"projectarchitect/internal/artifact"
	"projectarchitect/internal/pipeline"
)

// maxRequestBody bounds a start request; descriptions are limited far below.
const maxRequestBody = 1 << 20

// RegisterREST mounts the JSON run API on mux.
func (s *Service) RegisterREST(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/runs", s.StartRun)
	mux.HandleFunc("GET /v1/runs", s.ListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.GetRun)
	mux.HandleFunc("POST /v1/runs/{id}/cancel", s.CancelRun)
	mux.HandleFunc("GET /v1/runs/{id}/artifacts", s.GetManifest)
	mux.HandleFunc("GET /v1/runs/{id}/artifacts/{path...}", s.GetArtifact)
	mux.HandleFunc("GET /v1/runs/{id}/bundle", s.GetBundle)
}

func (s *Service) StartRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, &pipeline.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	id, err := s.runs.Start(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Service) ListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.runs.List()
	out := make([]RunSummary, 0, len(runs))
	for _, snap := range runs {
		out = append(out, summarize(snap))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, pipeline.ErrRunNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runs.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	snap, _ := s.runs.Get(id)
	writeJSON(w, http.StatusAccepted, summarize(snap))
}

// completedRun resolves id to a completed run or writes the reason it is
// not downloadable.
func (s *Service) completedRun(w http.ResponseWriter, id string) bool {
	snap, ok := s.runs.Get(id)
	if !ok {
		writeError(w, pipeline.ErrRunNotFound)
		return false
	}
	if snap.State != pipeline.StateCompleted {
		writeJSON(w, http.StatusConflict, apiError{
			Code:    "failed_precondition",
			Message: fmt.Sprintf("run %s is %s", id, snap.State),
		})
		return false
	}
	return true
}

func (s *Service) GetManifest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.completedRun(w, id) {
		return
	}
	m, err := artifact.LoadManifest(r.Context(), s.artifacts, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Service) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, p := r.PathValue("id"), r.PathValue("path")
	if !s.completedRun(w, id) {
		return
	}
	if url, err := s.artifacts.GetURL(r.Context(), id, p); err == nil && url != "" && r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	raw, err := s.artifacts.Get(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}
	ct := mime.TypeByExtension(path.Ext(p))
	if ct == "" || strings.HasPrefix(ct, "text/") {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(p)))
	_, _ = w.Write(raw)
}

func (s *Service) GetBundle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.completedRun(w, id) {
		return
	}
	files, err := artifact.LoadBundle(r.Context(), s.artifacts, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "files": files})
}
