package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/config"
	"projectarchitect/internal/pipeline"
	"projectarchitect/internal/types"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "run-1", "/src/main.go", []byte("package main\n")))
	require.NoError(t, s.Put(ctx, "run-1", "README.md", []byte("# x\n")))
	require.NoError(t, s.Put(ctx, "run-2", "README.md", []byte("other")))

	got, err := s.Get(ctx, "run-1", "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(got))

	got[0] = 'X'
	again, err := s.Get(ctx, "run-1", "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(again))

	paths, err := s.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/main.go"}, paths)

	_, err = s.Get(ctx, "run-1", "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeysAreValidated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	assert.Error(t, s.Put(ctx, "", "a.txt", nil))
	assert.Error(t, s.Put(ctx, "run", "", nil))
	assert.Error(t, s.Put(ctx, "run", "../etc/passwd", nil))
	assert.Error(t, s.Put(ctx, "a/b", "x.txt", nil))
	_, err := s.List(ctx, " ")
	assert.Error(t, err)

	_, p, err := cleanKey("run", `src\pkg\..\main.go`)
	require.NoError(t, err)
	assert.Equal(t, "src/main.go", p)
}

func completedSnapshot() pipeline.Snapshot {
	return pipeline.Snapshot{
		ID:          "run-42",
		ProjectName: "todo",
		Description: "a todo cli",
		State:       pipeline.StateCompleted,
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
		Outputs: pipeline.Outputs{
			Analysis: &types.Analysis{ProjectName: "todo"},
			Files: []types.CodeFile{
				{Path: "todo/cli.py", Content: "print('hi')\n", Language: "python"},
				{Path: "requirements.txt", Content: "stale\n"},
			},
			Manifests: []types.CodeFile{
				{Path: "requirements.txt", Content: "click\n", Language: "text"},
			},
		},
	}
}

func TestPublishAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m, err := Publish(ctx, s, completedSnapshot())
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "todo/cli.py", m.Files[0].Path)
	assert.Equal(t, len("print('hi')\n"), m.Files[0].Size)
	assert.Len(t, m.Files[0].SHA256, 64)

	paths, err := s.List(ctx, "run-42")
	require.NoError(t, err)
	assert.Equal(t, []string{ManifestPath, "requirements.txt", "todo/cli.py"}, paths)

	loaded, err := LoadManifest(ctx, s, "run-42")
	require.NoError(t, err)
	assert.Equal(t, "todo", loaded.ProjectName)
	assert.Equal(t, m.Files, loaded.Files)

	bundle, err := LoadBundle(ctx, s, "run-42")
	require.NoError(t, err)
	assert.Equal(t, []types.CodeFile{
		{Path: "todo/cli.py", Content: "print('hi')\n", Language: "python"},
		{Path: "requirements.txt", Content: "click\n", Language: "text"},
	}, bundle)
}

func TestPublishRejectsUnfinishedRuns(t *testing.T) {
	snap := completedSnapshot()
	snap.State = pipeline.StateFailed
	s := NewMemoryStore()
	_, err := Publish(context.Background(), s, snap)
	assert.ErrorContains(t, err, "FAILED")

	FinishHook(s)(context.Background(), snap)
	paths, err := s.List(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestPublishRejectsReservedPath(t *testing.T) {
	snap := completedSnapshot()
	snap.Outputs.Files = append(snap.Outputs.Files, types.CodeFile{Path: ManifestPath})
	_, err := Publish(context.Background(), NewMemoryStore(), snap)
	assert.ErrorContains(t, err, "collides")
}

func TestFinishHookPublishes(t *testing.T) {
	s := NewMemoryStore()
	FinishHook(s)(context.Background(), completedSnapshot())
	_, err := LoadManifest(context.Background(), s, "run-42")
	assert.NoError(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, config.ArtifactConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, closeFn())

	s, _, err = Open(ctx, config.ArtifactConfig{
		Backend: "s3", Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "bundles",
	})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	_, _, err = Open(ctx, config.ArtifactConfig{Backend: "s3", Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "access key")

	_, _, err = Open(ctx, config.ArtifactConfig{Backend: "postgres"})
	assert.ErrorContains(t, err, "dsn")

	_, _, err = Open(ctx, config.ArtifactConfig{Backend: "floppy"})
	assert.ErrorContains(t, err, "floppy")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("a/b.json"))
	assert.Equal(t, "application/octet-stream", contentType("Makefile"))
}
