package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Store persists the files of finished runs, keyed by run id and relative
// path.
type Store interface {
	Put(ctx context.Context, runID, path string, content []byte) error
	Get(ctx context.Context, runID, path string) ([]byte, error)
	GetURL(ctx context.Context, runID, path string) (string, error)
	List(ctx context.Context, runID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

// cleanKey validates a run id and relative path pair. Paths are stored
// slash-separated without a leading slash and may not escape the run.
func cleanKey(runID, p string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", "", fmt.Errorf("run_id is required")
	}
	if strings.Contains(runID, "/") {
		return "", "", fmt.Errorf("run_id %q contains '/'", runID)
	}
	p = strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"), "/")
	if p == "" {
		return "", "", fmt.Errorf("path is required")
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", "", fmt.Errorf("path %q escapes the run", p)
	}
	return runID, p, nil
}

func cleanRunID(runID string) (string, error) {
	id, _, err := cleanKey(runID, "x")
	return id, err
}

func objectKey(runID, p string) string {
	return runID + "/" + p
}
