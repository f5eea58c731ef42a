package extract

import "strings"

// Field describes one expected key of a record.
type Field struct {
	// Name is the canonical key used in extracted values and decode targets.
	Name    string
	Aliases []string
	// Required fields must be present and non-empty.
	Required bool
	// List fields hold a list of strings. A single string value is split on
	// ";" (or "," when no ";" is present) and on bullet lines.
	List bool
	// Records marks a field holding a list of nested records.
	Records *Shape
}

// Shape is the expected structure of a stage response.
type Shape struct {
	Name string
	// List shapes expect a list of records, each described by Fields.
	List   bool
	Fields []Field
	// Wrappers are keys a list shape may arrive under, e.g. {"files": [...]}.
	Wrappers []string
	// MinItems is the minimum number of records a list shape must carry.
	MinItems int
	// Prepare rewrites a parsed value before validation. It lets a stage
	// accept alternative layouts of the same data.
	Prepare func(v any) any
}

// keys returns the normalized names under which f may appear.
func (f Field) keys() []string {
	out := make([]string, 0, 1+len(f.Aliases))
	out = append(out, normKey(f.Name))
	for _, a := range f.Aliases {
		out = append(out, normKey(a))
	}
	return out
}

// vocabulary maps every normalized key of s and its nested record shapes to
// true.
func (s Shape) vocabulary() map[string]bool {
	v := map[string]bool{}
	var walk func(Shape)
	walk = func(sh Shape) {
		for _, f := range sh.Fields {
			for _, k := range f.keys() {
				v[k] = true
			}
			if f.Records != nil {
				walk(*f.Records)
			}
		}
	}
	walk(s)
	return v
}

// normKey lowercases and strips separators so "Project Type", "project_type"
// and "project-type" compare equal.
func normKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '_', '-', '\t', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
