package structure

import (
	"strings"

	"projectarchitect/internal/types"
)

// Render draws the tree rooted at n.
// Example:
// todo/
// ├── todo/
// │   └── main.py
// └── README.md
func Render(n *types.TreeNode) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(label(n))
	sb.WriteString("\n")
	renderTree(&sb, n.Children, "")
	return strings.TrimRight(sb.String(), "\n")
}

// PathsToTree renders plain file paths, declaring every implied directory.
func PathsToTree(root string, paths []string) string {
	var dirs []types.DirectoryNode
	files := make([]types.FileNode, 0, len(paths))
	seen := map[string]bool{}
	for _, raw := range paths {
		p, ok := NormalizePath(raw)
		if !ok {
			continue
		}
		files = append(files, types.FileNode{Path: p})
		for d := types.ParentPath(p); d != "" && !seen[d]; d = types.ParentPath(d) {
			seen[d] = true
			dirs = append(dirs, types.DirectoryNode{Path: d})
		}
	}
	s, err := Build(root, dirs, files)
	if err != nil {
		return ""
	}
	return Render(s.Tree)
}

func renderTree(sb *strings.Builder, children []*types.TreeNode, prefix string) {
	for i, c := range children {
		isLast := i == len(children)-1
		sb.WriteString(prefix)
		if isLast {
			sb.WriteString("└── ")
		} else {
			sb.WriteString("├── ")
		}
		sb.WriteString(label(c))
		sb.WriteString("\n")
		if len(c.Children) > 0 {
			next := prefix + "│   "
			if isLast {
				next = prefix + "    "
			}
			renderTree(sb, c.Children, next)
		}
	}
}

func label(n *types.TreeNode) string {
	if n.IsDir {
		return n.Name + "/"
	}
	return n.Name
}
