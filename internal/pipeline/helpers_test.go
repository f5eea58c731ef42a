package pipeline

import (
	"context"
	"encoding/json"

	"projectarchitect/internal/llm"
	llmclient "projectarchitect/internal/llm/client"
	"projectarchitect/internal/prompt"
)

const analyzeReply = "Sure! Here is the analysis:\n\n```json\n" +
	`{"project_type": "command-line tool", "rationale": "Runs in a terminal", "language": "Python", ` +
	`"technologies": ["click"], "requirements": ["Add a todo", "List todos", "Mark a todo done"], "project_name": "todo-cli"}` +
	"\n```\n"

const architectReply = `{"components": [
  {"name": "CLI", "purpose": "command parsing", "technologies": "click"},
  {"name": "Store", "purpose": "persist todos", "technologies": "json"},
  {"name": "cli", "purpose": "duplicate"}
],
"dependencies": [
  {"source": "CLI", "target": "store", "kind": "uses"},
  {"source": "CLI", "target": "Renderer", "kind": "uses"}
],
"data_flows": [{"source": "cli", "target": "Store", "data": "todo items"}]}`

const structureReply = `The layout:
{"root": "todo", "directories": [{"path": "todo/todo"}, {"path": "todo/tests"}],
 "files": [{"path": "todo/todo/__init__.py"}, {"path": "todo/todo/cli.py", "components": ["CLI"]},
           {"path": "todo/todo/store.py", "components": ["Store"]}, {"path": "todo/tests/test_store.py"},
           {"path": "todo/requirements.txt"}]}`

const dependenciesReply = "```json\n" +
	`{"main": [{"name": "click", "version": ">=8.1", "purpose": "CLI parsing"}, "rich"], "dev": ["black"], ` +
	`"test": [{"name": "pytest"}, {"name": "PyTest>=7"}]}` +
	"\n```"

func codeReply() string {
	files := []map[string]string{
		{"path": "todo/cli.py", "language": "python", "content": "import click\n\n@click.group()\ndef main():\n    pass\n"},
		{"path": "todo/todo/store.py", "content": "import json\n\ndef load(path):\n    return json.load(open(path))\n"},
		{"path": "tests/test_store.py", "content": "def test_load():\n    assert True\n"},
		{"path": "requirements.txt", "content": "click\n"},
		{"path": "scripts/seed.py", "content": "print('seed')\n"},
	}
	b, err := json.Marshal(files)
	if err != nil {
		panic(err)
	}
	return string(b)
}

const proseReply = "I would build a small command line program that keeps your todos in a file. It should be simple and fast."

// stageKey routes scripted replies by the stage tagged on the context.
func stageKey(ctx context.Context, _ llmclient.Request) string { return llm.PhaseFrom(ctx) }

func todoScript() *llmclient.ScriptedClient {
	return llmclient.NewScriptedClient(stageKey).
		On(string(prompt.StageAnalyze), llmclient.Reply{Text: analyzeReply}).
		On(string(prompt.StageArchitect), llmclient.Reply{Text: architectReply}).
		On(string(prompt.StageStructure), llmclient.Reply{Text: structureReply}).
		On(string(prompt.StageCode), llmclient.Reply{Text: codeReply()}).
		On(string(prompt.StageDependencies), llmclient.Reply{Text: dependenciesReply})
}

// gatedGenerator blocks the analyze call until release is closed.
type gatedGenerator struct {
	inner   llmclient.Generator
	entered chan struct{}
	release chan struct{}
}

func newGated(inner llmclient.Generator) *gatedGenerator {
	return &gatedGenerator{inner: inner, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedGenerator) Name() string { return "gated" }
func (g *gatedGenerator) Close() error { return nil }

func (g *gatedGenerator) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	if llm.PhaseFrom(ctx) == string(prompt.StageAnalyze) {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return g.inner.Generate(ctx, req)
}
