// Package demo scripts a complete run offline: the "fake" provider answers
// every stage with a small Go command-line project.
package demo

import (
	"context"
	"encoding/json"

	"projectarchitect/internal/llm"
	llmclient "projectarchitect/internal/llm/client"
	"projectarchitect/internal/prompt"
)

// Description is the request the scripted replies answer.
const Description = "A command line tool that greets a person by name, with an optional shout flag."

const analyzeReply = "```json\n" + `{
  "project_type": "CLI",
  "rationale": "Runs in a terminal and takes flags.",
  "language": "go",
  "technologies": ["cobra"],
  "subtypes": ["cli"],
  "requirements": ["Greet a person by name", "Shout the greeting when --shout is set"],
  "project_name": "greeter"
}` + "\n```"

const architectReply = `{
  "components": [
    {"name": "Command", "purpose": "Parse flags and arguments", "responsibilities": "cobra root command", "technologies": "cobra"},
    {"name": "Greeting", "purpose": "Build the greeting text", "responsibilities": "formatting and shouting"}
  ],
  "dependencies": [{"source": "Command", "target": "Greeting", "kind": "uses"}],
  "data_flows": [{"source": "Command", "target": "Greeting", "data": "name and shout flag", "protocol": "function call"}]
}`

const structureReply = `{
  "root": "greeter",
  "directories": [
    {"path": "cmd", "description": "entry points"},
    {"path": "cmd/greeter", "description": "binary", "components": ["Command"]},
    {"path": "internal", "description": "private packages"},
    {"path": "internal/greeting", "description": "greeting logic", "components": ["Greeting"]}
  ],
  "files": [
    {"path": "go.mod", "description": "module definition"},
    {"path": "cmd/greeter/main.go", "description": "root command", "components": ["Command"]},
    {"path": "internal/greeting/greeting.go", "description": "Greet function", "components": ["Greeting"]},
    {"path": "internal/greeting/greeting_test.go", "description": "tests", "components": ["Greeting"]},
    {"path": "README.md", "description": "usage"}
  ]
}`

const mainGo = `package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"greeter/internal/greeting"
)

func main() {
	var shout bool
	cmd := &cobra.Command{
		Use:  "greeter NAME",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), greeting.Greet(args[0], shout))
			return nil
		},
	}
	cmd.Flags().BoolVar(&shout, "shout", false, "greet loudly")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
`

const greetingGo = `package greeting

import "strings"

// Greet returns the greeting for name.
func Greet(name string, shout bool) string {
	s := "Hello, " + strings.TrimSpace(name) + "!"
	if shout {
		return strings.ToUpper(s)
	}
	return s
}
`

const greetingTestGo = `package greeting

import "testing"

func TestGreet(t *testing.T) {
	if got := Greet("Ada", false); got != "Hello, Ada!" {
		t.Fatalf("got %q", got)
	}
	if got := Greet("Ada", true); got != "HELLO, ADA!" {
		t.Fatalf("got %q", got)
	}
}
`

const readme = "# greeter\n\n    go run ./cmd/greeter --shout Ada\n"

const dependenciesReply = `[
  {"name": "github.com/spf13/cobra", "version": "v1.8.1", "purpose": "command line parsing", "category": "main"}
]`

func codeReply() string {
	files := []map[string]string{
		{"path": "go.mod", "content": "module greeter\n\ngo 1.22\n"},
		{"path": "cmd/greeter/main.go", "content": mainGo},
		{"path": "internal/greeting/greeting.go", "content": greetingGo},
		{"path": "internal/greeting/greeting_test.go", "content": greetingTestGo},
		{"path": "README.md", "content": readme, "language": "markdown"},
	}
	b, err := json.Marshal(files)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func stageKey(ctx context.Context, _ llmclient.Request) string { return llm.PhaseFrom(ctx) }

// Client returns a generator that answers each stage of one run.
func Client() *llmclient.ScriptedClient {
	return llmclient.NewScriptedClient(stageKey).
		On(string(prompt.StageAnalyze), llmclient.Reply{Text: analyzeReply}).
		On(string(prompt.StageArchitect), llmclient.Reply{Text: architectReply}).
		On(string(prompt.StageStructure), llmclient.Reply{Text: structureReply}).
		On(string(prompt.StageCode), llmclient.Reply{Text: codeReply()}).
		On(string(prompt.StageDependencies), llmclient.Reply{Text: dependenciesReply})
}
