package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"k8s.io/klog/v2"

	"projectarchitect/internal/artifact"
	"projectarchitect/internal/pipeline"
)

// Runner is the part of the orchestrator the gateway drives.
type Runner interface {
	Start(ctx context.Context, req pipeline.Request) (string, error)
	Get(id string) (pipeline.Snapshot, bool)
	List() []pipeline.Snapshot
	Cancel(id string) error
	Events() *pipeline.EventBroker
}

var _ Runner = (*pipeline.Orchestrator)(nil)

// Service implements the REST, RPC and watch surfaces over one runner and
// the artifact store its finished runs are published to.
type Service struct {
	runs      Runner
	artifacts artifact.Store
}

func NewService(runs Runner, artifacts artifact.Store) *Service {
	return &Service{runs: runs, artifacts: artifacts}
}

// RunSummary is the list view of a run.
type RunSummary struct {
	ID          string         `json:"id"`
	ProjectName string         `json:"project_name"`
	State       pipeline.State `json:"state"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

func summarize(s pipeline.Snapshot) RunSummary {
	return RunSummary{
		ID:          s.ID,
		ProjectName: s.ProjectName,
		State:       s.State,
		Error:       s.Error,
		CreatedAt:   s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf maps pipeline and artifact errors to HTTP status codes.
func statusOf(err error) (int, string) {
	var ve *pipeline.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, pipeline.ErrRunNotFound), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.V(2).InfoS("write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		klog.ErrorS(err, "request failed")
	}
	writeJSON(w, status, apiError{Code: code, Message: err.Error()})
}
