package types

import "strings"

// Component is one named building block of an ArchitecturePlan.
type Component struct {
	Name             string `json:"name"`
	Purpose          string `json:"purpose"`
	Responsibilities string `json:"responsibilities"`
	Technologies     string `json:"technologies"`
}

// Dependency is an architecture-level relation between two components.
type Dependency struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type DataFlow struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Data     string `json:"data"`
	Protocol string `json:"protocol,omitempty"`
}

// ArchitecturePlan component names are unique case-insensitively.
type ArchitecturePlan struct {
	ProjectType  ProjectType  `json:"project_type"`
	Components   []Component  `json:"components"`
	Dependencies []Dependency `json:"dependencies"`
	DataFlows    []DataFlow   `json:"data_flows"`
}

// Component looks a component up by name, ignoring case.
func (p ArchitecturePlan) Component(name string) (Component, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, c := range p.Components {
		if strings.ToLower(strings.TrimSpace(c.Name)) == key {
			return c, true
		}
	}
	return Component{}, false
}

// ComponentNames returns declared names in plan order.
func (p ArchitecturePlan) ComponentNames() []string {
	out := make([]string, 0, len(p.Components))
	for _, c := range p.Components {
		out = append(out, c.Name)
	}
	return out
}
