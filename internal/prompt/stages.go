package prompt

import (
	"errors"
	"sort"
	"strings"

	"projectarchitect/internal/types"
)

type stageDef struct {
	requires func(Context) error
	spec     func(Context) (Spec, error)
}

var stageDefs = map[Stage]stageDef{
	StageAnalyze:      {requires: needDescription, spec: analyzeSpec},
	StageArchitect:    {requires: needAnalysis, spec: architectSpec},
	StageStructure:    {requires: needArchitecture, spec: structureSpec},
	StageCode:         {requires: needStructure, spec: codeSpec},
	StageDependencies: {requires: needStructure, spec: dependenciesSpec},
}

func needDescription(c Context) error {
	if strings.TrimSpace(c.Description) == "" {
		return errors.New("description is empty")
	}
	return nil
}

func needAnalysis(c Context) error {
	if err := needDescription(c); err != nil {
		return err
	}
	if c.Analysis == nil {
		return errors.New("analysis is missing")
	}
	return nil
}

func needArchitecture(c Context) error {
	if err := needAnalysis(c); err != nil {
		return err
	}
	if c.Architecture == nil {
		return errors.New("architecture is missing")
	}
	return nil
}

func needStructure(c Context) error {
	if err := needArchitecture(c); err != nil {
		return err
	}
	if c.Structure == nil {
		return errors.New("structure is missing")
	}
	return nil
}

func outputFormat(list bool) string {
	head := "Respond with a single JSON object and nothing else."
	if list {
		head = "Respond with a single JSON array and nothing else."
	}
	return head + " Use exactly the keys listed under [OUTPUT].\n" +
		"If you cannot produce JSON, write one \"Key: value\" line per field and separate records with a blank line."
}

const analyzeInput = `Project name: {{ .ProjectName | default "(choose one)" }}
Description:
{{ .Description | trim | indent 2 }}`

func analyzeSpec(c Context) (Spec, error) {
	in, err := render("analyze", analyzeInput, c)
	if err != nil {
		return Spec{}, err
	}
	kinds := make([]string, 0, len(types.ProjectKinds))
	for _, k := range types.ProjectKinds {
		kinds = append(kinds, string(k))
	}
	return Spec{
		Purpose:    "Classify the project described below and extract its requirements.",
		Background: "Allowed project types: " + strings.Join(kinds, ", "),
		Input:      in,
		Output:     AnalysisShape,
		Rules: []string{
			"project_type must be exactly one of the allowed project types.",
			"requirements lists concrete, testable capabilities in the order a user would describe them.",
			"project_name is a short identifier: a letter first, then letters, digits, '-' or '_'.",
			"language is the primary implementation language in lower case.",
			"subtypes names finer categories such as web, cli, data_science or a framework.",
		},
		OutputFormat: outputFormat(false),
		Example: `{"project_type": "CLI", "rationale": "Runs in a terminal.", "language": "python", ` +
			`"technologies": ["click"], "subtypes": ["cli"], "requirements": ["Add a todo", "List todos"], "project_name": "todo-cli"}`,
	}, nil
}

const architectInput = `Project: {{ .ProjectName }}
Type: {{ .Analysis.ProjectType.Tag }}{{ with .Analysis.ProjectType.Language }} ({{ . }}){{ end }}
{{- with .Analysis.ProjectType.Technologies }}
Technologies: {{ join ", " . }}
{{- end }}
Description:
{{ .Description | trim | indent 2 }}
Requirements:
{{- range .Analysis.Requirements }}
- {{ . }}
{{- end }}`

func architectSpec(c Context) (Spec, error) {
	in, err := render("architect", architectInput, c)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Purpose: "Design the component architecture that satisfies the requirements.",
		Input:   in,
		Output:  ArchitectureShape,
		Rules: []string{
			"Component names are unique.",
			"Every dependency and data flow refers to declared component names.",
			"Prefer few cohesive components over many thin ones.",
		},
		OutputFormat: outputFormat(false),
		Example: `{"components": [{"name": "CLI", "purpose": "Parse commands", "responsibilities": "argument parsing", "technologies": "click"}], ` +
			`"dependencies": [{"source": "CLI", "target": "Store", "kind": "uses", "description": "persists todos"}], ` +
			`"data_flows": [{"source": "CLI", "target": "Store", "data": "todo items", "protocol": "function call"}]}`,
	}, nil
}

const structureInput = `Project root: {{ .ProjectName }}
Type: {{ .Analysis.ProjectType.Tag }}{{ with .Analysis.ProjectType.Language }} ({{ . }}){{ end }}
Components:
{{- range .Architecture.Components }}
- {{ .Name }}: {{ .Purpose }}{{ with .Technologies }} [{{ . }}]{{ end }}
{{- end }}`

func structureSpec(c Context) (Spec, error) {
	in, err := render("structure", structureInput, c)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Purpose: "Lay out the directory and file tree of the project.",
		Input:   in,
		Output:  StructureShape,
		Rules: []string{
			"Paths are relative to the project root, use '/' and have no leading slash.",
			"Declare every directory that contains a file, parents before children.",
			"components names the architecture components a path implements.",
			"Include the build and dependency manifest files the ecosystem expects.",
		},
		OutputFormat: outputFormat(false),
		Example: `{"root": "todo-cli", "directories": [{"path": "todo", "description": "package", "components": ["CLI"]}], ` +
			`"files": [{"path": "todo/main.py", "description": "entry point", "components": ["CLI"]}]}`,
	}, nil
}

const codeInput = `Project: {{ .ProjectName }}
Type: {{ .Analysis.ProjectType.Tag }}{{ with .Analysis.ProjectType.Language }} ({{ . }}){{ end }}
Requirements:
{{- range .Analysis.Requirements }}
- {{ . }}
{{- end }}
Components:
{{- range .Architecture.Components }}
- {{ .Name }}: {{ .Responsibilities | default .Purpose }}
{{- end }}
Files to write:
{{- range .Structure.Files }}
- {{ .Path }}{{ with .Description }}: {{ . }}{{ end }}
{{- end }}`

func codeSpec(c Context) (Spec, error) {
	in, err := render("code", codeInput, c)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Purpose: "Write the source code for every file of the project structure.",
		Input:   in,
		Output:  CodeShape,
		Rules: []string{
			"Return one record per file listed under Files to write, using the same path.",
			"content holds the complete file text, JSON-escaped.",
			"Keep imports consistent with the declared components and technologies.",
		},
		OutputFormat: outputFormat(true),
		Example:      `[{"path": "todo/main.py", "language": "python", "content": "def main():\n    pass\n"}]`,
	}, nil
}

const dependenciesInput = `Project: {{ .ProjectName }}
Type: {{ .Analysis.ProjectType.Tag }}{{ with .Analysis.ProjectType.Language }} ({{ . }}){{ end }}
{{- with .Technologies }}
Technologies: {{ join ", " . }}
{{- end }}
Files:
{{- range .Paths }}
- {{ . }}
{{- end }}`

func dependenciesSpec(c Context) (Spec, error) {
	paths := c.Structure.FilePaths()
	if len(c.Files) > 0 {
		paths = make([]string, 0, len(c.Files))
		for _, f := range c.Files {
			paths = append(paths, f.Path)
		}
	}
	in, err := render("dependencies", dependenciesInput, map[string]any{
		"ProjectName":  c.ProjectName,
		"Analysis":     c.Analysis,
		"Technologies": technologies(c),
		"Paths":        paths,
	})
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Purpose: "List the third-party packages the project needs.",
		Input:   in,
		Output:  DependencyShape,
		Rules: []string{
			"category is main, dev or test.",
			"version is a range in the ecosystem's own syntax, or empty when any version works.",
			"Do not list standard-library modules.",
		},
		OutputFormat: outputFormat(true),
		Example:      `[{"name": "click", "version": ">=8.1", "purpose": "command line parsing", "category": "main"}]`,
	}, nil
}

// technologies collects the analysis and component technologies, sorted and
// de-duplicated.
func technologies(c Context) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	if c.Analysis != nil {
		for _, t := range c.Analysis.ProjectType.Technologies {
			add(t)
		}
	}
	if c.Architecture != nil {
		for _, comp := range c.Architecture.Components {
			for _, t := range strings.Split(comp.Technologies, ",") {
				add(t)
			}
		}
	}
	sort.Strings(out)
	return out
}
