package deps

import (
	"sort"
	"strings"

	"projectarchitect/internal/types"
)

const (
	EcosystemPip     = "pip"
	EcosystemNPM     = "npm"
	EcosystemGo      = "go"
	EcosystemGeneric = "generic"
)

var ecosystemByKind = map[types.ProjectKind]string{
	types.KindPython:     EcosystemPip,
	types.KindDjango:     EcosystemPip,
	types.KindFlask:      EcosystemPip,
	types.KindFastAPI:    EcosystemPip,
	types.KindJavaScript: EcosystemNPM,
	types.KindTypeScript: EcosystemNPM,
	types.KindReact:      EcosystemNPM,
	types.KindAngular:    EcosystemNPM,
	types.KindVue:        EcosystemNPM,
	types.KindNode:       EcosystemNPM,
	types.KindExpress:    EcosystemNPM,
	types.KindGo:         EcosystemGo,
}

var ecosystemByLanguage = map[string]string{
	"python":     EcosystemPip,
	"javascript": EcosystemNPM,
	"typescript": EcosystemNPM,
	"node":       EcosystemNPM,
	"go":         EcosystemGo,
	"golang":     EcosystemGo,
}

// EcosystemFor picks the package ecosystem: a framework or language tag
// decides first, then the analysed primary language.
func EcosystemFor(pt types.ProjectType) string {
	if e, ok := ecosystemByKind[pt.Tag]; ok {
		return e
	}
	if e, ok := ecosystemByLanguage[strings.ToLower(strings.TrimSpace(pt.Language))]; ok {
		return e
	}
	return EcosystemGeneric
}

type template struct {
	main []string
	dev  []string
	test []string
}

// templates maps ecosystem -> subtype -> base packages. A subtype applies
// when it names the project kind, a declared subtype or a technology.
var templates = map[string]map[string]template{
	EcosystemPip: {
		"web":          {main: []string{"flask", "requests", "sqlalchemy"}, test: []string{"pytest"}},
		"flask":        {main: []string{"flask"}, test: []string{"pytest"}},
		"django":       {main: []string{"django"}, test: []string{"pytest-django"}},
		"fastapi":      {main: []string{"fastapi", "uvicorn[standard]", "pydantic"}, test: []string{"pytest", "httpx"}},
		"data_science": {main: []string{"numpy", "pandas", "scikit-learn", "matplotlib"}},
		"cli":          {main: []string{"click", "rich", "pyyaml"}, test: []string{"pytest"}},
	},
	EcosystemNPM: {
		"react":      {main: []string{"react", "react-dom", "react-router-dom", "axios"}, dev: []string{"vite"}},
		"vue":        {main: []string{"vue"}, dev: []string{"vite"}},
		"angular":    {main: []string{"@angular/core", "@angular/common", "rxjs"}},
		"node":       {main: []string{"express", "dotenv"}, test: []string{"jest"}},
		"express":    {main: []string{"express"}, test: []string{"jest", "supertest"}},
		"typescript": {dev: []string{"typescript"}},
	},
	EcosystemGo: {
		"cli": {main: []string{"github.com/spf13/cobra v1.8.1"}, test: []string{"github.com/stretchr/testify v1.9.0"}},
		"api": {test: []string{"github.com/stretchr/testify v1.9.0"}},
		"web": {test: []string{"github.com/stretchr/testify v1.9.0"}},
	},
}

// BaseTemplate returns the packages every project of pt's ecosystem and
// subtypes starts from. Subtypes are applied in sorted order.
func BaseTemplate(pt types.ProjectType) types.DependencySpec {
	eco := EcosystemFor(pt)
	spec := types.DependencySpec{Ecosystem: eco}
	byEco := templates[eco]
	if len(byEco) == 0 {
		return spec
	}
	wanted := map[string]bool{strings.ToLower(string(pt.Tag)): true}
	for _, s := range append(append([]string{}, pt.Subtypes...), pt.Technologies...) {
		s = strings.ToLower(strings.TrimSpace(s))
		wanted[strings.NewReplacer(" ", "_", "-", "_").Replace(s)] = true
	}
	subtypes := make([]string, 0, len(byEco))
	for st := range byEco {
		if wanted[st] {
			subtypes = append(subtypes, st)
		}
	}
	sort.Strings(subtypes)

	var main, dev, test []types.Package
	for _, st := range subtypes {
		t := byEco[st]
		main = append(main, packages(t.main)...)
		dev = append(dev, packages(t.dev)...)
		test = append(test, packages(t.test)...)
	}
	for _, g := range []types.PackageGroup{
		{Category: types.CategoryMain, Packages: main},
		{Category: types.CategoryDev, Packages: dev},
		{Category: types.CategoryTest, Packages: test},
	} {
		if len(g.Packages) > 0 {
			spec.Groups = append(spec.Groups, g)
		}
	}
	return spec
}

func packages(names []string) []types.Package {
	out := make([]types.Package, 0, len(names))
	for _, n := range names {
		name, version := SplitSpecifier(n)
		out = append(out, types.Package{Name: name, Version: version})
	}
	return out
}
