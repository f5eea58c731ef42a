package safeio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/types"
)

func TestSafeFSAllowsAbsoluteUnderRoot(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))
	fs, err := NewSafeFS(dir)
	require.NoError(t, err)
	got, err := fs.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestNewSafeFSCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out", "todo")
	fs, err := NewSafeFS(root)
	require.NoError(t, err)
	info, err := os.Stat(fs.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteBundle(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	require.NoError(t, err)

	written, err := fs.WriteBundle([]types.CodeFile{
		{Path: "todo/cli.py", Content: "print('hi')\n"},
		{Path: "requirements.txt", Content: "click\n"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"todo/cli.py", "requirements.txt"}, written)

	got, err := fs.ReadFile("todo/cli.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(got))

	err = fs.WriteFile("requirements.txt", []byte("rich\n"), false)
	assert.ErrorIs(t, err, ErrExists)
	require.NoError(t, fs.WriteFile("requirements.txt", []byte("rich\n"), true))
	got, err = fs.ReadFile("requirements.txt")
	require.NoError(t, err)
	assert.Equal(t, "rich\n", string(got))
}

func TestWriteRejectsEscapes(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	require.NoError(t, err)
	for _, p := range []string{"", "..", "../x.txt", "a/../../x.txt", "/etc/passwd"} {
		assert.Error(t, fs.WriteFile(p, []byte("x"), true), p)
	}
	require.NoError(t, fs.WriteFile("a/../b.txt", []byte("x"), true))
	_, err = fs.Stat("b.txt")
	assert.NoError(t, err)
}

func TestWriteRejectsSymlinkedDirectory(t *testing.T) {
	outside := t.TempDir()
	root := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	fs, err := NewSafeFS(root)
	require.NoError(t, err)
	err = fs.WriteFile("link/x.txt", []byte("x"), true)
	assert.ErrorContains(t, err, "outside root")
	_, statErr := os.Stat(filepath.Join(outside, "x.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadRejectsTraversal(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	require.NoError(t, err)
	_, err = fs.ReadFile("../secret")
	assert.Error(t, err)
}
