package pipeline

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"projectarchitect/internal/deps"
	"projectarchitect/internal/extract"
	"projectarchitect/internal/llm"
	llmclient "projectarchitect/internal/llm/client"
	"projectarchitect/internal/prompt"
	"projectarchitect/internal/structure"
	"projectarchitect/internal/types"
)

// runStage executes one stage and returns the change to apply to the run's
// outputs. Nothing is written to the run unless the stage succeeds.
func (o *Orchestrator) runStage(ctx context.Context, run *Run, stage prompt.Stage) (func(*Outputs), error) {
	res, err := o.generate(ctx, run, stage)
	if err != nil {
		return nil, err
	}
	switch stage {
	case prompt.StageAnalyze:
		return o.analyze(run, res)
	case prompt.StageArchitect:
		return o.architect(run, res)
	case prompt.StageStructure:
		return o.structure(run, res)
	case prompt.StageCode:
		return o.code(ctx, run, res)
	case prompt.StageDependencies:
		return o.dependencies(run, res)
	}
	return nil, fmt.Errorf("pipeline: unknown stage %q", stage)
}

// generate builds the stage prompt, calls the model and extracts the
// stage's shape from the reply.
func (o *Orchestrator) generate(ctx context.Context, run *Run, stage prompt.Stage) (extract.Result, error) {
	p, err := prompt.Build(stage, prompt.Context{
		Description:  run.Description,
		ProjectName:  run.ProjectName,
		Analysis:     run.Outputs.Analysis,
		Architecture: run.Outputs.Architecture,
		Structure:    run.Outputs.Structure,
		Files:        run.Outputs.Files,
	})
	if err != nil {
		return extract.Result{}, err
	}
	shape, ok := prompt.ShapeFor(stage)
	if !ok {
		return extract.Result{}, fmt.Errorf("pipeline: no shape for stage %q", stage)
	}
	raw, err := o.gen.Generate(llm.WithPhase(ctx, string(stage)), llmclient.Request{
		Prompt:      p.User,
		System:      p.System,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return extract.Result{}, err
	}
	res, err := o.extractor.Extract(raw, shape)
	if err != nil {
		return extract.Result{}, err
	}
	klog.V(4).InfoS("response extracted", "run", run.ID, "stage", stage, "strategy", res.Strategy)
	return res, nil
}

type analysisDTO struct {
	ProjectType  string   `json:"project_type"`
	Rationale    string   `json:"rationale"`
	Language     string   `json:"language"`
	Technologies []string `json:"technologies"`
	Subtypes     []string `json:"subtypes"`
	Requirements []string `json:"requirements"`
	ProjectName  string   `json:"project_name"`
}

func (o *Orchestrator) analyze(run *Run, res extract.Result) (func(*Outputs), error) {
	var dto analysisDTO
	if err := res.Decode(&dto); err != nil {
		return nil, err
	}
	kind, ok := types.ParseProjectKind(dto.ProjectType)
	if !ok {
		klog.InfoS("unknown project type, using GENERIC", "run", run.ID, "type", dto.ProjectType)
		kind = types.KindGeneric
	}
	a := &types.Analysis{
		ProjectType: types.ProjectType{
			Tag:          kind,
			Rationale:    dto.Rationale,
			Language:     strings.ToLower(strings.TrimSpace(dto.Language)),
			Technologies: dto.Technologies,
			Subtypes:     dto.Subtypes,
		},
		ProjectName: strings.TrimSpace(dto.ProjectName),
	}
	for _, r := range dto.Requirements {
		a.Requirements = append(a.Requirements, types.Requirement(r))
	}
	if run.ProjectName == "" {
		switch {
		case ValidProjectName(a.ProjectName):
			run.ProjectName = a.ProjectName
		default:
			run.ProjectName = Slugify(run.Description)
		}
		klog.V(2).InfoS("project name derived", "run", run.ID, "project", run.ProjectName)
	}
	return func(out *Outputs) { out.Analysis = a }, nil
}

func (o *Orchestrator) architect(run *Run, res extract.Result) (func(*Outputs), error) {
	var plan types.ArchitecturePlan
	if err := res.Decode(&plan); err != nil {
		return nil, err
	}
	plan.ProjectType = run.Outputs.Analysis.ProjectType
	p := SanitizePlan(plan, func(msg, detail string) {
		klog.InfoS(msg, "run", run.ID, "detail", detail)
	})
	if len(p.Components) == 0 {
		return nil, fmt.Errorf("architecture has no named components")
	}
	return func(out *Outputs) { out.Architecture = &p }, nil
}

// SanitizePlan enforces the plan invariants: component names unique
// ignoring case (first wins), relations and flows only between declared
// components. warn receives every dropped item.
func SanitizePlan(plan types.ArchitecturePlan, warn func(msg, detail string)) types.ArchitecturePlan {
	if warn == nil {
		warn = func(string, string) {}
	}
	canonical := map[string]string{}
	comps := make([]types.Component, 0, len(plan.Components))
	for _, c := range plan.Components {
		c.Name = strings.TrimSpace(c.Name)
		key := strings.ToLower(c.Name)
		if key == "" {
			continue
		}
		if _, dup := canonical[key]; dup {
			warn("duplicate component dropped", c.Name)
			continue
		}
		canonical[key] = c.Name
		comps = append(comps, c)
	}
	resolve := func(name string) (string, bool) {
		n, ok := canonical[strings.ToLower(strings.TrimSpace(name))]
		return n, ok
	}

	var relations []types.Dependency
	for _, d := range plan.Dependencies {
		src, ok1 := resolve(d.Source)
		dst, ok2 := resolve(d.Target)
		if !ok1 || !ok2 {
			warn("dependency with unknown component dropped", d.Source+" -> "+d.Target)
			continue
		}
		d.Source, d.Target = src, dst
		relations = append(relations, d)
	}
	var flows []types.DataFlow
	for _, f := range plan.DataFlows {
		src, ok1 := resolve(f.Source)
		dst, ok2 := resolve(f.Target)
		if !ok1 || !ok2 {
			warn("data flow with unknown component dropped", f.Source+" -> "+f.Target)
			continue
		}
		f.Source, f.Target = src, dst
		flows = append(flows, f)
	}
	return types.ArchitecturePlan{
		ProjectType:  plan.ProjectType,
		Components:   comps,
		Dependencies: relations,
		DataFlows:    flows,
	}
}

type structureDTO struct {
	Root        string                `json:"root"`
	Directories []types.DirectoryNode `json:"directories"`
	Files       []types.FileNode      `json:"files"`
}

func (o *Orchestrator) structure(run *Run, res extract.Result) (func(*Outputs), error) {
	var dto structureDTO
	if err := res.Decode(&dto); err != nil {
		return nil, err
	}
	if root := strings.Trim(strings.TrimSpace(dto.Root), "/"); root != "" && root != run.ProjectName {
		klog.V(2).InfoS("model proposed a different root, keeping project name", "run", run.ID, "root", root, "project", run.ProjectName)
	}
	s, err := structure.Build(run.ProjectName, dto.Directories, dto.Files)
	if err != nil {
		return nil, err
	}
	if len(s.Files) == 0 {
		return nil, fmt.Errorf("structure declares no usable files")
	}
	for _, w := range s.Warnings {
		klog.V(2).InfoS("structure warning", "run", run.ID, "path", w.Path, "kind", w.Kind)
	}
	return func(out *Outputs) { out.Structure = &s }, nil
}

type codeDTO struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

func (o *Orchestrator) code(ctx context.Context, run *Run, res extract.Result) (func(*Outputs), error) {
	var dto []codeDTO
	if err := res.Decode(&dto); err != nil {
		return nil, err
	}
	st := run.Outputs.Structure
	seen := map[string]bool{}
	var files []types.CodeFile
	for _, f := range dto {
		p, ok := structure.NormalizePath(f.Path)
		if !ok {
			klog.InfoS("generated file with unusable path dropped", "run", run.ID, "path", f.Path)
			continue
		}
		if trimmed := strings.TrimPrefix(p, run.ProjectName+"/"); !st.HasFile(p) && st.HasFile(trimmed) {
			p = trimmed
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		if !st.HasFile(p) {
			klog.InfoS("generated file outside the declared structure", "run", run.ID, "path", p)
		}
		content := f.Content
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		files = append(files, types.NewCodeFile(p, content, f.Language))
	}
	if o.boilerplate != nil {
		for _, fn := range st.Files {
			if seen[fn.Path] {
				continue
			}
			if content, ok := o.boilerplate.Content(ctx, *run.Outputs.Analysis, fn); ok {
				seen[fn.Path] = true
				files = append(files, types.NewCodeFile(fn.Path, content, ""))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no code files were generated")
	}
	return func(out *Outputs) { out.Files = files }, nil
}

type packageDTO struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Purpose  string `json:"purpose"`
	Category string `json:"category"`
}

func (o *Orchestrator) dependencies(run *Run, res extract.Result) (func(*Outputs), error) {
	var dto []packageDTO
	if err := res.Decode(&dto); err != nil {
		return nil, err
	}
	pt := run.Outputs.Analysis.ProjectType
	spec := deps.Merge(deps.BaseTemplate(pt), modelSpec(dto))
	if spec.Ecosystem == "" {
		spec.Ecosystem = deps.EcosystemFor(pt)
	}
	existing := make(map[string]string, len(run.Outputs.Files))
	for _, f := range run.Outputs.Files {
		existing[f.Path] = f.Content
	}
	manifests, err := deps.SerializerFor(spec.Ecosystem).Files(run.ProjectName, spec, existing)
	if err != nil {
		return nil, err
	}
	klog.V(2).InfoS("dependencies resolved", "run", run.ID, "ecosystem", spec.Ecosystem, "packages", spec.Len())
	return func(out *Outputs) {
		out.Dependencies = &spec
		out.Manifests = manifests
	}, nil
}

// modelSpec groups the model's flat package list by category, keeping the
// order in which categories first appear.
func modelSpec(pkgs []packageDTO) types.DependencySpec {
	var spec types.DependencySpec
	index := map[types.Category]int{}
	for _, p := range pkgs {
		cat := deps.NormalizeCategory(types.Category(p.Category))
		i, ok := index[cat]
		if !ok {
			i = len(spec.Groups)
			index[cat] = i
			spec.Groups = append(spec.Groups, types.PackageGroup{Category: cat})
		}
		spec.Groups[i].Packages = append(spec.Groups[i].Packages, types.Package{
			Name: p.Name, Version: p.Version, Purpose: p.Purpose,
		})
	}
	return spec
}
