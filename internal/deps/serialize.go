package deps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	xsemver "golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"projectarchitect/internal/types"
	"projectarchitect/internal/util/jsonutil"
)

// Serializer renders a merged DependencySpec as the manifest files of one
// ecosystem. existing holds files already generated for the project, keyed
// by path; a serializer may fold its output into a matching file.
type Serializer interface {
	Ecosystem() string
	Files(project string, spec types.DependencySpec, existing map[string]string) ([]types.CodeFile, error)
}

// SerializerFor returns the serializer for ecosystem, falling back to the
// generic YAML manifest.
func SerializerFor(ecosystem string) Serializer {
	switch ecosystem {
	case EcosystemPip:
		return pipSerializer{}
	case EcosystemNPM:
		return npmSerializer{}
	case EcosystemGo:
		return goSerializer{}
	}
	return genericSerializer{}
}

type pipSerializer struct{}

func (pipSerializer) Ecosystem() string { return EcosystemPip }

func (pipSerializer) Files(_ string, spec types.DependencySpec, _ map[string]string) ([]types.CodeFile, error) {
	var main, dev strings.Builder
	for _, g := range spec.Groups {
		w := &dev
		if g.Category == types.CategoryMain {
			w = &main
		}
		for _, p := range g.Packages {
			line := p.Name + pipVersion(p.Version)
			if p.Purpose != "" {
				line += "  # " + strings.ReplaceAll(p.Purpose, "\n", " ")
			}
			w.WriteString(line + "\n")
		}
	}
	files := []types.CodeFile{types.NewCodeFile("requirements.txt", main.String(), "text")}
	if dev.Len() > 0 {
		files = append(files, types.NewCodeFile("requirements-dev.txt", "-r requirements.txt\n"+dev.String(), "text"))
	}
	return files, nil
}

// pipVersion turns a version into a PEP 440 specifier. A bare version pins
// exactly; npm style carets become lower bounds.
func pipVersion(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "" || v == "*" || strings.EqualFold(v, "latest"):
		return ""
	case strings.HasPrefix(v, "^"):
		return ">=" + strings.TrimPrefix(v, "^")
	case strings.HasPrefix(v, "~") && !strings.HasPrefix(v, "~="):
		return "~=" + strings.TrimPrefix(v, "~")
	case strings.ContainsAny(v[:1], "=<>!~"):
		return v
	}
	return "==" + strings.TrimPrefix(v, "v")
}

type npmSerializer struct{}

func (npmSerializer) Ecosystem() string { return EcosystemNPM }

var npmSection = map[types.Category]string{
	types.CategoryMain: "dependencies",
	types.CategoryDev:  "devDependencies",
	types.CategoryTest: "devDependencies",
	"peer":             "peerDependencies",
	"optional":         "optionalDependencies",
}

type packageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Private              bool              `json:"private"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
}

func (npmSerializer) Files(project string, spec types.DependencySpec, existing map[string]string) ([]types.CodeFile, error) {
	sections := map[string]map[string]string{}
	for _, g := range spec.Groups {
		sec, ok := npmSection[g.Category]
		if !ok {
			sec = "devDependencies"
		}
		if sections[sec] == nil {
			sections[sec] = map[string]string{}
		}
		for _, p := range g.Packages {
			if _, dup := sections[sec][p.Name]; !dup {
				sections[sec][p.Name] = npmVersion(p.Version)
			}
		}
	}

	var (
		out []byte
		err error
	)
	if raw, ok := existing["package.json"]; ok {
		out, err = foldPackageJSON(raw, sections)
	} else {
		out, err = jsonutil.MarshalNoEscapeIndent(packageJSON{
			Name:                 npmName(project),
			Version:              "0.1.0",
			Private:              true,
			Dependencies:         sections["dependencies"],
			DevDependencies:      sections["devDependencies"],
			PeerDependencies:     sections["peerDependencies"],
			OptionalDependencies: sections["optionalDependencies"],
		}, "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("deps: package.json: %w", err)
	}
	return []types.CodeFile{types.NewCodeFile("package.json", string(out)+"\n", "json")}, nil
}

// foldPackageJSON writes the sections into a generated package.json, keeping
// its other keys. Merged entries win over the file's own.
func foldPackageJSON(raw string, sections map[string]map[string]string) ([]byte, error) {
	doc := map[string]any{}
	if err := jsonutil.UnmarshalFlex([]byte(raw), &doc); err != nil {
		return nil, err
	}
	for sec, pkgs := range sections {
		cur, _ := doc[sec].(map[string]any)
		if cur == nil {
			cur = map[string]any{}
		}
		for name, v := range pkgs {
			cur[name] = v
		}
		doc[sec] = cur
	}
	return jsonutil.MarshalNoEscapeIndent(doc, "  ")
}

// npmVersion keeps ranges and dist-tags; a bare version becomes a caret
// range, an empty one "*".
func npmVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "*"
	}
	if sv, err := semver.NewVersion(v); err == nil {
		return "^" + sv.String()
	}
	return v
}

func npmName(project string) string {
	name := strings.ToLower(strings.TrimSpace(project))
	name = strings.NewReplacer(" ", "-", "_", "-").Replace(name)
	if name == "" {
		return "project"
	}
	return name
}

type goSerializer struct{}

func (goSerializer) Ecosystem() string { return EcosystemGo }

const goDirective = "1.22"

func (goSerializer) Files(project string, spec types.DependencySpec, existing map[string]string) ([]types.CodeFile, error) {
	raw, ok := existing["go.mod"]
	if !ok {
		raw = fmt.Sprintf("module %s\n\ngo %s\n", goModulePath(project), goDirective)
	}
	f, err := modfile.Parse("go.mod", []byte(raw), nil)
	if err != nil {
		return nil, fmt.Errorf("deps: go.mod: %w", err)
	}
	var unpinned []string
	for _, g := range spec.Groups {
		for _, p := range g.Packages {
			if err := module.CheckPath(p.Name); err != nil {
				unpinned = append(unpinned, p.Name)
				continue
			}
			v := goVersion(p.Version)
			if v == "" {
				unpinned = append(unpinned, p.Name)
				continue
			}
			if err := f.AddRequire(p.Name, v); err != nil {
				return nil, fmt.Errorf("deps: go.mod require %s: %w", p.Name, err)
			}
		}
	}
	sort.Strings(unpinned)
	for _, name := range unpinned {
		f.AddComment("// go get " + name)
	}
	f.Cleanup()
	return []types.CodeFile{types.NewCodeFile("go.mod", string(modfile.Format(f.Syntax)), "")}, nil
}

// goVersion canonicalizes v to a module version, "" when it is not one.
func goVersion(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "=^~>")
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !xsemver.IsValid(v) {
		return ""
	}
	return xsemver.Canonical(v)
}

func goModulePath(project string) string {
	p := strings.ToLower(strings.TrimSpace(project))
	if p == "" || module.CheckImportPath(p) != nil {
		return "example.com/project"
	}
	return p
}

type genericSerializer struct{}

func (genericSerializer) Ecosystem() string { return EcosystemGeneric }

type yamlPackage struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	Purpose string `yaml:"purpose,omitempty"`
}

type yamlGroup struct {
	Category string        `yaml:"category"`
	Packages []yamlPackage `yaml:"packages"`
}

type yamlManifest struct {
	Project   string      `yaml:"project,omitempty"`
	Ecosystem string      `yaml:"ecosystem,omitempty"`
	Groups    []yamlGroup `yaml:"groups"`
}

func (genericSerializer) Files(project string, spec types.DependencySpec, _ map[string]string) ([]types.CodeFile, error) {
	m := yamlManifest{Project: project, Ecosystem: spec.Ecosystem, Groups: make([]yamlGroup, 0, len(spec.Groups))}
	for _, g := range spec.Groups {
		yg := yamlGroup{Category: string(g.Category)}
		for _, p := range g.Packages {
			yg.Packages = append(yg.Packages, yamlPackage(p))
		}
		m.Groups = append(m.Groups, yg)
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("deps: dependencies.yaml: %w", err)
	}
	return []types.CodeFile{types.NewCodeFile("dependencies.yaml", string(out), "yaml")}, nil
}
