package types

import "strings"

// DirectoryNode is a declared directory. Path is slash-separated, relative,
// without a leading slash.
type DirectoryNode struct {
	Path        string   `json:"path"`
	Description string   `json:"description,omitempty"`
	Components  []string `json:"components,omitempty"`
}

// FileNode is a declared file.
type FileNode struct {
	Path        string   `json:"path"`
	Description string   `json:"description,omitempty"`
	Components  []string `json:"components,omitempty"`
}

// ParentPath strips the last segment. "" means the root.
func ParentPath(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Depth counts path separators; "src" is 0, "src/app" is 1.
func Depth(p string) int { return strings.Count(p, "/") }

// TreeNode is the derived hierarchical view of a ProjectStructure.
type TreeNode struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	IsDir       bool        `json:"is_dir"`
	Description string      `json:"description,omitempty"`
	Children    []*TreeNode `json:"children,omitempty"`
}

// Walk visits n and its descendants depth-first. parent is nil for n.
func (n *TreeNode) Walk(fn func(node, parent *TreeNode)) {
	if n == nil {
		return
	}
	var visit func(node, parent *TreeNode)
	visit = func(node, parent *TreeNode) {
		fn(node, parent)
		for _, c := range node.Children {
			visit(c, node)
		}
	}
	visit(n, nil)
}

// StructureWarning is a non-fatal finding recorded while building the tree.
type StructureWarning struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	WarnUndeclaredParent = "undeclared_parent"
	WarnDuplicate        = "duplicate"
	WarnPathConflict     = "path_conflict"
	WarnInvalidPath      = "invalid_path"
)

// ProjectStructure keeps the flat lists as the source of truth; Tree is a
// convenience view built from them.
type ProjectStructure struct {
	Root        string             `json:"root"`
	Directories []DirectoryNode    `json:"directories"`
	Files       []FileNode         `json:"files"`
	Tree        *TreeNode          `json:"tree,omitempty"`
	Warnings    []StructureWarning `json:"warnings,omitempty"`
}

// FilePaths returns declared file paths in declaration order.
func (s ProjectStructure) FilePaths() []string {
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Path)
	}
	return out
}

// HasFile reports whether path is a declared file.
func (s ProjectStructure) HasFile(path string) bool {
	for _, f := range s.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}
