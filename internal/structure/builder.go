package structure

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"projectarchitect/internal/types"
)

// DefaultRoot names the tree root when the caller supplies none.
const DefaultRoot = "project"

// Build assembles a ProjectStructure from flat directory and file lists.
// Directories are materialized parents first and each node is linked to its
// longest declared ancestor; an undeclared immediate parent, a duplicate or a
// file shadowing a directory is recorded as a warning. The returned error is
// reserved for a tree that fails its own consistency check.
func Build(root string, dirs []types.DirectoryNode, files []types.FileNode) (types.ProjectStructure, error) {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" {
		root = DefaultRoot
	}
	b := &builder{
		root:  &types.TreeNode{Name: root, IsDir: true},
		nodes: map[string]*types.TreeNode{},
		kinds: map[string]bool{},
	}

	dirs, files = b.normalize(root, dirs, files)

	byPath := make(map[string]types.DirectoryNode, len(dirs))
	paths := make([]string, 0, len(dirs))
	for _, d := range dirs {
		byPath[d.Path] = d
		paths = append(paths, d.Path)
	}
	for _, p := range SortByDepth(paths) {
		d := byPath[p]
		b.attach(&types.TreeNode{Name: p, Path: p, IsDir: true, Description: d.Description})
	}

	keptFiles := make([]types.FileNode, 0, len(files))
	for _, f := range files {
		if isDir, seen := b.kinds[f.Path]; seen {
			kind, msg := types.WarnDuplicate, "file declared twice"
			if isDir {
				kind, msg = types.WarnPathConflict, "file path is also a declared directory"
			}
			b.warn(f.Path, kind, msg)
			continue
		}
		b.attach(&types.TreeNode{Name: f.Path, Path: f.Path, Description: f.Description})
		keptFiles = append(keptFiles, f)
	}

	sortChildren(b.root)
	out := types.ProjectStructure{
		Root:        root,
		Directories: dirs,
		Files:       keptFiles,
		Tree:        b.root,
		Warnings:    b.warnings,
	}
	if err := Validate(out); err != nil {
		return types.ProjectStructure{}, err
	}
	return out, nil
}

type builder struct {
	root     *types.TreeNode
	nodes    map[string]*types.TreeNode
	kinds    map[string]bool // path -> is directory
	warnings []types.StructureWarning
}

func (b *builder) warn(p, kind, msg string) {
	klog.V(4).InfoS("structure warning", "path", p, "kind", kind, "message", msg)
	b.warnings = append(b.warnings, types.StructureWarning{Path: p, Kind: kind, Message: msg})
}

// normalize cleans every path, drops unusable ones and duplicate
// directories, and strips an echoed root prefix.
func (b *builder) normalize(root string, dirs []types.DirectoryNode, files []types.FileNode) ([]types.DirectoryNode, []types.FileNode) {
	all := make([]string, 0, len(dirs)+len(files))
	for _, d := range dirs {
		if p, ok := NormalizePath(d.Path); ok {
			all = append(all, p)
		}
	}
	for _, f := range files {
		if p, ok := NormalizePath(f.Path); ok {
			all = append(all, p)
		}
	}
	_, strip := stripRoot(root, all)
	clean := func(raw string) (string, bool) {
		p, ok := NormalizePath(raw)
		if !ok {
			b.warn(raw, types.WarnInvalidPath, "path is empty or escapes the project root")
			return "", false
		}
		if strip {
			if p == root {
				return "", false
			}
			p = strings.TrimPrefix(p, root+"/")
		}
		return p, true
	}

	outDirs := make([]types.DirectoryNode, 0, len(dirs))
	for _, d := range dirs {
		p, ok := clean(d.Path)
		if !ok {
			continue
		}
		if _, dup := b.kinds[p]; dup {
			b.warn(p, types.WarnDuplicate, "directory declared twice")
			continue
		}
		b.kinds[p] = true
		d.Path = p
		outDirs = append(outDirs, d)
	}
	outFiles := make([]types.FileNode, 0, len(files))
	for _, f := range files {
		p, ok := clean(f.Path)
		if !ok {
			continue
		}
		f.Path = p
		outFiles = append(outFiles, f)
	}
	return outDirs, outFiles
}

// attach links n under its longest declared ancestor, or the root.
func (b *builder) attach(n *types.TreeNode) {
	parent := b.root
	want := types.ParentPath(n.Path)
	for p := want; p != ""; p = types.ParentPath(p) {
		if dir, ok := b.nodes[p]; ok {
			parent = dir
			break
		}
	}
	if want != "" && parent.Path != want {
		b.warn(n.Path, types.WarnUndeclaredParent, fmt.Sprintf("parent %q is not declared; attached to %q", want, b.label(parent)))
	}
	if parent.Path != "" {
		n.Name = strings.TrimPrefix(n.Path, parent.Path+"/")
	}
	parent.Children = append(parent.Children, n)
	if n.IsDir {
		b.nodes[n.Path] = n
	} else {
		b.kinds[n.Path] = false
	}
}

func (b *builder) label(n *types.TreeNode) string {
	if n == b.root {
		return b.root.Name
	}
	return n.Path
}

// sortChildren orders directories before files, then by name.
func sortChildren(n *types.TreeNode) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, c := n.Children[i], n.Children[j]
		if a.IsDir != c.IsDir {
			return a.IsDir
		}
		return a.Name < c.Name
	})
	for _, c := range n.Children {
		sortChildren(c)
	}
}

// Validate checks that every non-root node hangs off the root or a declared
// directory that is a path prefix of it, and that the tree holds exactly the
// declared nodes.
func Validate(s types.ProjectStructure) error {
	if s.Tree == nil {
		return fmt.Errorf("structure: tree is missing")
	}
	declared := make(map[string]bool, len(s.Directories))
	for _, d := range s.Directories {
		declared[d.Path] = true
	}
	var dirs, files int
	var err error
	s.Tree.Walk(func(n, parent *types.TreeNode) {
		if err != nil || parent == nil {
			return
		}
		switch {
		case !parent.IsDir:
			err = fmt.Errorf("structure: %q is attached to file %q", n.Path, parent.Path)
		case parent != s.Tree && !declared[parent.Path]:
			err = fmt.Errorf("structure: %q is attached to undeclared directory %q", n.Path, parent.Path)
		case parent != s.Tree && !strings.HasPrefix(n.Path, parent.Path+"/"):
			err = fmt.Errorf("structure: %q is not under its parent %q", n.Path, parent.Path)
		}
		if n.IsDir {
			dirs++
		} else {
			files++
		}
	})
	if err != nil {
		return err
	}
	if dirs != len(s.Directories) || files != len(s.Files) {
		return fmt.Errorf("structure: tree holds %d directories and %d files, declared %d and %d",
			dirs, files, len(s.Directories), len(s.Files))
	}
	return nil
}
