package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/config"
	"projectarchitect/internal/demo"
	"projectarchitect/internal/pipeline"
)

func defaultConfig() (*config.Config, error) {
	cfg := config.Default()
	return &cfg, nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(defaultConfig)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFakeRunWritesProject(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--fake", "--out", dir, demo.Description)
	require.NoError(t, err)

	assert.Contains(t, out, "Project greeter")
	assert.Contains(t, out, "greeter/")
	assert.Contains(t, out, "Wrote ")

	mod, err := os.ReadFile(filepath.Join(dir, "greeter", "go.mod"))
	require.NoError(t, err)
	assert.Contains(t, string(mod), "module greeter")
	assert.FileExists(t, filepath.Join(dir, "greeter", "README.md"))
}

func TestExistingFilesNeedOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "--fake", "--out", dir, demo.Description)
	require.NoError(t, err)

	_, err = execute(t, "--fake", "--out", dir, demo.Description)
	assert.ErrorContains(t, err, "--overwrite")

	_, err = execute(t, "--fake", "--overwrite", "--out", dir, demo.Description)
	assert.NoError(t, err)
}

func TestDryRunJSON(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--fake", "--dry-run", "--json", "--name", "hello", "--out", dir, demo.Description)
	require.NoError(t, err)

	var snap pipeline.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, pipeline.StateCompleted, snap.State)
	assert.Equal(t, "hello", snap.ProjectName)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDescriptionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desc.txt")
	require.NoError(t, os.WriteFile(path, []byte(demo.Description+"\n"), 0o644))

	out, err := execute(t, "--fake", "--dry-run", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")

	_, err = execute(t, "--fake", "--file", path, "extra words")
	assert.ErrorContains(t, err, "not both")
}

func TestMissingDescription(t *testing.T) {
	_, err := execute(t, "--fake")
	assert.ErrorContains(t, err, "description is required")
}
