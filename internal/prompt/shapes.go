package prompt

import (
	"sort"
	"strings"

	"projectarchitect/internal/extract"
)

var (
	AnalysisShape = extract.Shape{
		Name: "analysis",
		Fields: []extract.Field{
			{Name: "project_type", Aliases: []string{"type", "tag", "kind", "category"}, Required: true},
			{Name: "rationale", Aliases: []string{"reason", "justification"}},
			{Name: "language", Aliases: []string{"primary_language"}},
			{Name: "technologies", Aliases: []string{"tech_stack", "stack"}, List: true},
			{Name: "subtypes", Aliases: []string{"subtype", "domains"}, List: true},
			{Name: "requirements", Aliases: []string{"features"}, Required: true, List: true},
			{Name: "project_name", Aliases: []string{"name", "suggested_name"}},
		},
	}

	componentShape = extract.Shape{
		Name:     "components",
		MinItems: 1,
		Fields: []extract.Field{
			{Name: "name", Aliases: []string{"component"}, Required: true},
			{Name: "purpose"},
			{Name: "responsibilities", Aliases: []string{"responsibility"}},
			{Name: "technologies", Aliases: []string{"technology", "tech"}},
		},
	}

	dependencyShape = extract.Shape{
		Name: "dependencies",
		Fields: []extract.Field{
			{Name: "source", Aliases: []string{"from"}, Required: true},
			{Name: "target", Aliases: []string{"to"}, Required: true},
			{Name: "kind", Aliases: []string{"relation", "type"}},
			{Name: "description"},
		},
	}

	dataFlowShape = extract.Shape{
		Name: "data_flows",
		Fields: []extract.Field{
			{Name: "source", Aliases: []string{"from"}, Required: true},
			{Name: "target", Aliases: []string{"to"}, Required: true},
			{Name: "data", Aliases: []string{"payload"}},
			{Name: "protocol"},
		},
	}

	ArchitectureShape = extract.Shape{
		Name: "architecture",
		Fields: []extract.Field{
			{Name: "components", Required: true, Records: &componentShape},
			{Name: "dependencies", Aliases: []string{"relations"}, Records: &dependencyShape},
			{Name: "data_flows", Aliases: []string{"flows"}, Records: &dataFlowShape},
		},
	}

	directoryShape = extract.Shape{
		Name: "directories",
		Fields: []extract.Field{
			{Name: "path", Aliases: []string{"dir", "directory"}, Required: true},
			{Name: "description"},
			{Name: "components", List: true},
		},
	}

	fileShape = extract.Shape{
		Name:     "files",
		MinItems: 1,
		Fields: []extract.Field{
			{Name: "path", Aliases: []string{"file", "filename"}, Required: true},
			{Name: "description"},
			{Name: "components", List: true},
		},
	}

	StructureShape = extract.Shape{
		Name: "structure",
		Fields: []extract.Field{
			{Name: "root", Aliases: []string{"root_name", "project_root"}},
			{Name: "directories", Aliases: []string{"dirs", "folders"}, Records: &directoryShape},
			{Name: "files", Required: true, Records: &fileShape},
		},
		Prepare: liftPaths,
	}

	CodeShape = extract.Shape{
		Name:     "files",
		List:     true,
		MinItems: 1,
		Wrappers: []string{"code_files", "code"},
		Fields: []extract.Field{
			{Name: "path", Aliases: []string{"file", "filename"}, Required: true},
			{Name: "content", Aliases: []string{"code", "source"}, Required: true},
			{Name: "language", Aliases: []string{"lang"}},
		},
	}

	DependencyShape = extract.Shape{
		Name:     "dependencies",
		List:     true,
		Wrappers: []string{"packages"},
		Fields: []extract.Field{
			{Name: "name", Aliases: []string{"package"}, Required: true},
			{Name: "version", Aliases: []string{"version_range", "constraint"}},
			{Name: "purpose", Aliases: []string{"description", "reason"}},
			{Name: "category", Aliases: []string{"group", "scope"}},
		},
		Prepare: flattenDependencies,
	}
)

// ShapeFor returns the response shape a stage prompt asks for.
func ShapeFor(stage Stage) (extract.Shape, bool) {
	switch stage {
	case StageAnalyze:
		return AnalysisShape, true
	case StageArchitect:
		return ArchitectureShape, true
	case StageStructure:
		return StructureShape, true
	case StageCode:
		return CodeShape, true
	case StageDependencies:
		return DependencyShape, true
	}
	return extract.Shape{}, false
}

// liftPaths accepts directory and file lists given as bare path strings,
// {"directories": ["src", "src/app"]}, by turning each string into a
// {"path": ...} record.
func liftPaths(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, vv := range m {
		items, ok := vv.([]any)
		if !ok {
			continue
		}
		for i, it := range items {
			if s, ok := it.(string); ok {
				items[i] = map[string]any{"path": s}
			}
		}
		m[k] = items
	}
	return m
}

var categoryAliases = map[string]string{
	"main":                 "main",
	"runtime":              "main",
	"prod":                 "main",
	"production":           "main",
	"install_requires":     "main",
	"dev":                  "dev",
	"development":          "dev",
	"devdependencies":      "dev",
	"dev_dependencies":     "dev",
	"test":                 "test",
	"testing":              "test",
	"tests":                "test",
	"optional":             "optional",
	"peerdependencies":     "peer",
	"optionaldependencies": "optional",
}

// flattenDependencies accepts the layouts models commonly return instead of
// a flat record list: {"main": [...], "dev": [...]}, package.json style
// {"dependencies": {"react": "^18"}, "devDependencies": {...}} and bare
// name strings.
func flattenDependencies(v any) any {
	switch x := v.(type) {
	case []any:
		return flattenItems(x, "")
	case map[string]any:
		if inner, ok := x["dependencies"].([]any); ok && len(x) == 1 {
			return flattenItems(inner, "")
		}
		if inner, ok := x["packages"].([]any); ok && len(x) == 1 {
			return flattenItems(inner, "")
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []any
		grouped := false
		for _, k := range keys {
			cat := categoryOf(k)
			switch vv := x[k].(type) {
			case []any:
				out = append(out, flattenItems(vv, cat)...)
				grouped = true
			case map[string]any:
				if nested, ok := flattenDependencies(vv).([]any); ok && isNested(vv) {
					for _, it := range nested {
						if m, ok := it.(map[string]any); ok && m["category"] == nil {
							m["category"] = cat
						}
					}
					out = append(out, nested...)
				} else {
					out = append(out, versionMap(vv, cat)...)
				}
				grouped = true
			}
		}
		if grouped {
			return out
		}
	}
	return v
}

// isNested reports whether m groups lists by category rather than mapping
// package names to versions.
func isNested(m map[string]any) bool {
	for _, v := range m {
		if _, ok := v.(string); ok {
			return false
		}
	}
	return true
}

func categoryOf(k string) string {
	if c, ok := categoryAliases[strings.ToLower(k)]; ok {
		return c
	}
	if strings.EqualFold(k, "dependencies") || strings.EqualFold(k, "packages") {
		return "main"
	}
	return strings.ToLower(k)
}

func flattenItems(items []any, cat string) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			m := map[string]any{"name": x}
			if cat != "" {
				m["category"] = cat
			}
			out = append(out, m)
		case map[string]any:
			if cat != "" {
				if _, ok := x["category"]; !ok {
					x["category"] = cat
				}
			}
			out = append(out, x)
		default:
			out = append(out, it)
		}
	}
	return out
}

func versionMap(m map[string]any, cat string) []any {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]any, 0, len(names))
	for _, n := range names {
		rec := map[string]any{"name": n, "category": cat}
		if s, ok := m[n].(string); ok {
			rec["version"] = s
		}
		out = append(out, rec)
	}
	return out
}
