package structure

import (
	"path"
	"sort"
	"strings"

	"projectarchitect/internal/types"
)

// NormalizePath turns a model-supplied path into the canonical relative
// form. ok is false when nothing usable remains or the path escapes the
// root.
func NormalizePath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "`\"'")
	for strings.HasPrefix(p, "./") || strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
	}
	if p == "" || p == "." {
		return "", false
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

// SortByDepth orders paths parents first: ascending separator count, ties
// broken lexically. The input slice is left untouched.
func SortByDepth(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := types.Depth(out[i]), types.Depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// stripRoot removes a leading "<root>/" when every path carries it, which is
// how models often echo the project directory back.
func stripRoot(root string, paths []string) ([]string, bool) {
	if root == "" || len(paths) == 0 {
		return paths, false
	}
	prefix := root + "/"
	for _, p := range paths {
		if p != root && !strings.HasPrefix(p, prefix) {
			return paths, false
		}
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.TrimPrefix(strings.TrimPrefix(p, prefix), root)
	}
	return out, true
}
