package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"projectarchitect/internal/extract"
	"projectarchitect/internal/types"
)

// Stage names one pipeline step.
type Stage string

const (
	StageAnalyze      Stage = "analyze"
	StageArchitect    Stage = "architect"
	StageStructure    Stage = "structure"
	StageCode         Stage = "code"
	StageDependencies Stage = "dependencies"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{StageAnalyze, StageArchitect, StageStructure, StageCode, StageDependencies}

// Context is everything a stage prompt may draw on. Later stages read the
// validated outputs of earlier ones.
type Context struct {
	Description  string
	ProjectName  string
	Analysis     *types.Analysis
	Architecture *types.ArchitecturePlan
	Structure    *types.ProjectStructure
	Files        []types.CodeFile
}

// Prompt is the rendered request for one stage.
type Prompt struct {
	System string
	User   string
}

// Spec defines the sections of a stage prompt.
type Spec struct {
	Purpose      string
	Background   string
	Input        string
	Output       extract.Shape
	Rules        []string
	OutputFormat string
	Example      string
}

// Build renders the prompt for stage. It performs no I/O: the same stage and
// context always yield the same prompt.
func Build(stage Stage, c Context) (Prompt, error) {
	def, ok := stageDefs[stage]
	if !ok {
		return Prompt{}, fmt.Errorf("prompt: unknown stage %q", stage)
	}
	if err := def.requires(c); err != nil {
		return Prompt{}, fmt.Errorf("prompt: %s: %w", stage, err)
	}
	spec, err := def.spec(c)
	if err != nil {
		return Prompt{}, fmt.Errorf("prompt: %s: %w", stage, err)
	}
	if strings.TrimSpace(spec.Purpose) == "" {
		return Prompt{}, fmt.Errorf("prompt: %s: purpose is empty", stage)
	}

	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", spec.Purpose)
	writeSection(&buf, "BACKGROUND", spec.Background)
	writeSection(&buf, "INPUT", spec.Input)
	writeSection(&buf, "OUTPUT", formatFields(spec.Output, ""))
	writeSection(&buf, "RULES", formatList(spec.Rules))
	writeSection(&buf, "OUTPUT_FORMAT", spec.OutputFormat)
	writeSection(&buf, "EXAMPLE", spec.Example)

	return Prompt{
		System: systemPrompt,
		User:   strings.TrimSpace(buf.String()) + "\n",
	}, nil
}

const systemPrompt = "You are a senior software architect. You answer with structured data only, exactly in the requested format, without commentary."

// render executes a text/template with sprig functions.
func render(name, tpl string, data any) (string, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func formatFields(shape extract.Shape, indent string) string {
	if len(shape.Fields) == 0 {
		return ""
	}
	var buf strings.Builder
	if shape.List && indent == "" {
		fmt.Fprintf(&buf, "A list of %s records, each with:\n", shape.Name)
	}
	for _, f := range shape.Fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		typ := "string"
		switch {
		case f.Records != nil:
			typ = "list of objects"
		case f.List:
			typ = "list of strings"
		}
		fmt.Fprintf(&buf, "%s- %s (%s, %s)\n", indent, f.Name, typ, req)
		if f.Records != nil {
			buf.WriteString(formatFields(*f.Records, indent+"  "))
			buf.WriteString("\n")
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
