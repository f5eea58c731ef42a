package cli

import (
	"fmt"
	"strings"

	"projectarchitect/internal/pipeline"
	"projectarchitect/internal/structure"
	"projectarchitect/internal/types"
)

// summary renders a finished run for the terminal. written lists the paths
// placed on disk; it is empty on a dry run.
func summary(snap pipeline.Snapshot, dest string, written []string) string {
	var b strings.Builder
	out := snap.Outputs

	b.WriteString(titleStyle.Render(fmt.Sprintf("Project %s", snap.ProjectName)))
	b.WriteString("\n")

	if a := out.Analysis; a != nil {
		kind := string(a.ProjectType.Tag)
		if a.ProjectType.Language != "" {
			kind += " (" + a.ProjectType.Language + ")"
		}
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Type"), kind)
		for _, r := range a.Requirements {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}

	if p := out.Architecture; p != nil {
		fmt.Fprintf(&b, "%s\n", headerStyle.Render("Components"))
		for _, c := range p.Components {
			fmt.Fprintf(&b, "  %s %s\n", c.Name, subtleStyle.Render(c.Purpose))
		}
	}

	if s := out.Structure; s != nil && s.Tree != nil {
		fmt.Fprintf(&b, "%s\n", headerStyle.Render("Structure"))
		b.WriteString(treeStyle.Render(strings.TrimRight(structure.Render(s.Tree), "\n")))
		b.WriteString("\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "%s\n", warnStyle.Render(fmt.Sprintf("  warning: %s: %s", w.Path, w.Message)))
		}
	}

	if d := out.Dependencies; d != nil {
		fmt.Fprintf(&b, "%s\n", headerStyle.Render("Dependencies"))
		for _, g := range d.Groups {
			fmt.Fprintf(&b, "  %s: %s\n", g.Category, packageList(g.Packages))
		}
	}

	if len(written) == 0 {
		fmt.Fprintf(&b, "%s\n", subtleStyle.Render(fmt.Sprintf("dry run: %d files not written", len(out.Bundle()))))
	} else {
		fmt.Fprintf(&b, "%s\n", successStyle.Render(fmt.Sprintf("Wrote %d files to %s", len(written), dest)))
	}
	return b.String()
}

func packageList(pkgs []types.Package) string {
	names := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Version != "" {
			names = append(names, p.Name+" "+p.Version)
			continue
		}
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
