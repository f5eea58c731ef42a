package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectarchitect/internal/extract"
	"projectarchitect/internal/types"
)

func fullContext() Context {
	return Context{
		Description: "a simple todo CLI",
		ProjectName: "todo",
		Analysis: &types.Analysis{
			ProjectType:  types.ProjectType{Tag: types.KindCLI, Language: "python", Technologies: []string{"click"}},
			Requirements: []types.Requirement{"add todo", "list todos"},
		},
		Architecture: &types.ArchitecturePlan{Components: []types.Component{
			{Name: "CLI", Purpose: "commands", Technologies: "click, rich"},
			{Name: "Store", Purpose: "persistence", Responsibilities: "save todos"},
		}},
		Structure: &types.ProjectStructure{Root: "todo", Files: []types.FileNode{
			{Path: "todo/main.py", Description: "entry"},
		}},
	}
}

func TestBuildRendersSections(t *testing.T) {
	p, err := Build(StageAnalyze, fullContext())
	require.NoError(t, err)
	assert.NotEmpty(t, p.System)
	for _, sec := range []string{"[PURPOSE]", "[BACKGROUND]", "[INPUT]", "[OUTPUT]", "[RULES]", "[OUTPUT_FORMAT]", "[EXAMPLE]"} {
		assert.Contains(t, p.User, sec)
	}
	assert.Contains(t, p.User, "a simple todo CLI")
	assert.Contains(t, p.User, "- project_type (string, required)")
	assert.Contains(t, p.User, "- requirements (list of strings, required)")
	assert.Contains(t, p.User, "CLI, API")
}

func TestBuildIsDeterministic(t *testing.T) {
	for _, st := range Stages {
		a, err := Build(st, fullContext())
		require.NoError(t, err, st)
		b, err := Build(st, fullContext())
		require.NoError(t, err, st)
		assert.Equal(t, a, b, st)
	}
}

func TestBuildStageInputs(t *testing.T) {
	c := fullContext()

	p, err := Build(StageArchitect, c)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Type: CLI (python)")
	assert.Contains(t, p.User, "Technologies: click")
	assert.Contains(t, p.User, "- list todos")
	assert.Contains(t, p.User, "- components (list of objects, required)")
	assert.Contains(t, p.User, "  - name (string, required)")

	p, err = Build(StageCode, c)
	require.NoError(t, err)
	assert.Contains(t, p.User, "- todo/main.py: entry")
	assert.Contains(t, p.User, "- Store: save todos")
	assert.Contains(t, p.User, "- CLI: commands")
	assert.Contains(t, p.User, "JSON array")

	p, err = Build(StageDependencies, c)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Technologies: click, rich")

	c.Files = []types.CodeFile{{Path: "todo/cli.py"}}
	p, err = Build(StageDependencies, c)
	require.NoError(t, err)
	assert.Contains(t, p.User, "- todo/cli.py")
	assert.NotContains(t, p.User, "- todo/main.py")
}

func TestBuildRequiresContext(t *testing.T) {
	_, err := Build(StageAnalyze, Context{})
	assert.Error(t, err)

	c := fullContext()
	c.Analysis = nil
	_, err = Build(StageArchitect, c)
	assert.ErrorContains(t, err, "analysis is missing")

	c = fullContext()
	c.Structure = nil
	_, err = Build(StageCode, c)
	assert.ErrorContains(t, err, "structure is missing")

	_, err = Build(Stage("deploy"), fullContext())
	assert.ErrorContains(t, err, "unknown stage")
}

func TestShapeForEveryStage(t *testing.T) {
	for _, st := range Stages {
		s, ok := ShapeFor(st)
		assert.True(t, ok, st)
		assert.NotEmpty(t, s.Fields, st)
	}
	_, ok := ShapeFor("nope")
	assert.False(t, ok)
}

func TestDependencyShapeLayouts(t *testing.T) {
	cases := map[string]string{
		"flat":     `[{"name":"click","version":">=8","category":"main"},{"name":"pytest","category":"test"}]`,
		"grouped":  `{"main":[{"name":"click","version":">=8"}],"test":["pytest"]}`,
		"wrapped":  `{"dependencies":{"main":[{"name":"click","version":">=8"}],"testing":["pytest"]}}`,
		"manifest": `{"dependencies":{"click":">=8"},"test":{"pytest":""}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := extract.Extract(raw, DependencyShape)
			require.NoError(t, err)
			var pkgs []struct {
				Name     string `json:"name"`
				Version  string `json:"version"`
				Category string `json:"category"`
			}
			require.NoError(t, res.Decode(&pkgs))
			require.Len(t, pkgs, 2)
			byName := map[string]string{}
			for _, p := range pkgs {
				byName[p.Name] = p.Category
			}
			assert.Equal(t, "main", byName["click"])
			assert.Equal(t, "test", byName["pytest"])
		})
	}
}

func TestStructureShapeExtract(t *testing.T) {
	raw := "```json\n" + `{"root":"todo","directories":[{"path":"todo","components":"CLI, Store"}],"files":[{"path":"todo/main.py"}]}` + "\n```"
	res, err := extract.Extract(raw, StructureShape)
	require.NoError(t, err)
	m := res.Value.(map[string]any)
	dirs := m["directories"].([]any)
	assert.Equal(t, []any{"CLI", "Store"}, dirs[0].(map[string]any)["components"])
	assert.True(t, strings.HasPrefix(res.Strategy, "fenced"))
}

func TestStructureShapeBarePaths(t *testing.T) {
	cases := map[string]string{
		"directories": `{"root":"app","directories":["src","src/app"],"files":[{"path":"src/app/main.py","description":"entry"}]}`,
		"both":        `{"directories":["src","src/app"],"files":["src/app/main.py","README.md"]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := extract.Extract(raw, StructureShape)
			require.NoError(t, err)

			var got struct {
				Directories []struct {
					Path string `json:"path"`
				} `json:"directories"`
				Files []struct {
					Path string `json:"path"`
				} `json:"files"`
			}
			require.NoError(t, res.Decode(&got))
			require.Len(t, got.Directories, 2)
			assert.Equal(t, "src", got.Directories[0].Path)
			assert.Equal(t, "src/app", got.Directories[1].Path)
			require.NotEmpty(t, got.Files)
			assert.Equal(t, "src/app/main.py", got.Files[0].Path)
		})
	}
}
