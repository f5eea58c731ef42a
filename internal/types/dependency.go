package types

// Category groups packages by purpose (main/dev/test, or others a model
// invents).
type Category string

const (
	CategoryMain Category = "main"
	CategoryDev  Category = "dev"
	CategoryTest Category = "test"
)

// Package is a single dependency entry.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// PackageGroup is one category of a DependencySpec.
type PackageGroup struct {
	Category Category  `json:"category"`
	Packages []Package `json:"packages"`
}

// DependencySpec is the merged, categorised dependency list. Within a
// category normalized package names are unique.
type DependencySpec struct {
	Ecosystem string         `json:"ecosystem,omitempty"`
	Groups    []PackageGroup `json:"groups"`
}

// Packages returns the packages of one category, or nil.
func (s DependencySpec) Packages(c Category) []Package {
	for _, g := range s.Groups {
		if g.Category == c {
			return g.Packages
		}
	}
	return nil
}

// Len counts packages across categories.
func (s DependencySpec) Len() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Packages)
	}
	return n
}
