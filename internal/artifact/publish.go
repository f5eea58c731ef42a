package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"projectarchitect/internal/pipeline"
	"projectarchitect/internal/types"
	"projectarchitect/internal/util/jsonutil"
)

// ManifestPath is where Publish records the run next to its files.
const ManifestPath = ".architect/manifest.json"

type FileEntry struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Size     int    `json:"size"`
	SHA256   string `json:"sha256"`
}

// Manifest describes one published run.
type Manifest struct {
	RunID        string                  `json:"run_id"`
	ProjectName  string                  `json:"project_name"`
	Description  string                  `json:"description"`
	CreatedAt    time.Time               `json:"created_at"`
	PublishedAt  time.Time               `json:"published_at"`
	Analysis     *types.Analysis         `json:"analysis,omitempty"`
	Architecture *types.ArchitecturePlan `json:"architecture,omitempty"`
	Structure    *types.ProjectStructure `json:"structure,omitempty"`
	Dependencies *types.DependencySpec   `json:"dependencies,omitempty"`
	Files        []FileEntry             `json:"files"`
}

// Publish writes every file of a completed run's bundle followed by its
// manifest. The manifest is written last, so its presence marks a complete
// upload.
func Publish(ctx context.Context, store Store, snap pipeline.Snapshot) (Manifest, error) {
	if snap.State != pipeline.StateCompleted {
		return Manifest{}, fmt.Errorf("publish %s: run is %s, not %s", snap.ID, snap.State, pipeline.StateCompleted)
	}
	m := Manifest{
		RunID:        snap.ID,
		ProjectName:  snap.ProjectName,
		Description:  snap.Description,
		CreatedAt:    snap.CreatedAt,
		PublishedAt:  time.Now().UTC(),
		Analysis:     snap.Outputs.Analysis,
		Architecture: snap.Outputs.Architecture,
		Structure:    snap.Outputs.Structure,
		Dependencies: snap.Outputs.Dependencies,
	}
	for _, f := range snap.Outputs.Bundle() {
		_, p, err := cleanKey(snap.ID, f.Path)
		if err != nil {
			return Manifest{}, fmt.Errorf("publish %s: %w", snap.ID, err)
		}
		if p == ManifestPath {
			return Manifest{}, fmt.Errorf("publish %s: generated file collides with %s", snap.ID, ManifestPath)
		}
		if err := store.Put(ctx, snap.ID, p, []byte(f.Content)); err != nil {
			return Manifest{}, fmt.Errorf("publish %s: put %s: %w", snap.ID, p, err)
		}
		sum := sha256.Sum256([]byte(f.Content))
		m.Files = append(m.Files, FileEntry{
			Path:     p,
			Language: f.Language,
			Size:     len(f.Content),
			SHA256:   hex.EncodeToString(sum[:]),
		})
	}
	raw, err := jsonutil.MarshalNoEscapeIndent(m, "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := store.Put(ctx, snap.ID, ManifestPath, raw); err != nil {
		return Manifest{}, fmt.Errorf("publish %s: put manifest: %w", snap.ID, err)
	}
	return m, nil
}

// LoadManifest reads back what Publish recorded for runID.
func LoadManifest(ctx context.Context, store Store, runID string) (Manifest, error) {
	raw, err := store.Get(ctx, runID, ManifestPath)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest of %s: %w", runID, err)
	}
	return m, nil
}

// LoadBundle returns the published files of runID in manifest order.
func LoadBundle(ctx context.Context, store Store, runID string) ([]types.CodeFile, error) {
	m, err := LoadManifest(ctx, store, runID)
	if err != nil {
		return nil, err
	}
	out := make([]types.CodeFile, 0, len(m.Files))
	for _, f := range m.Files {
		raw, err := store.Get(ctx, runID, f.Path)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("bundle of %s lost %s: %w", runID, f.Path, err)
			}
			return nil, err
		}
		out = append(out, types.CodeFile{Path: f.Path, Content: string(raw), Language: f.Language})
	}
	return out, nil
}

// FinishHook adapts Publish to pipeline.WithFinishHook. Runs that did not
// complete are skipped; publish failures are logged.
func FinishHook(store Store) func(context.Context, pipeline.Snapshot) {
	return func(ctx context.Context, snap pipeline.Snapshot) {
		if snap.State != pipeline.StateCompleted {
			return
		}
		m, err := Publish(ctx, store, snap)
		if err != nil {
			klog.ErrorS(err, "artifact publish failed", "run", snap.ID)
			return
		}
		klog.InfoS("artifacts published", "run", snap.ID, "files", len(m.Files))
	}
}
