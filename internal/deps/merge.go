package deps

import (
	"sort"
	"strings"

	"projectarchitect/internal/types"
)

var categoryRank = map[types.Category]int{
	types.CategoryMain: 0,
	types.CategoryDev:  1,
	types.CategoryTest: 2,
}

// NormalizeCategory lower-cases c and maps an empty category to main.
func NormalizeCategory(c types.Category) types.Category {
	s := strings.ToLower(strings.TrimSpace(string(c)))
	if s == "" {
		return types.CategoryMain
	}
	return types.Category(s)
}

// Merge combines sources in order. Within a category the first occurrence of
// a normalized name wins; a later duplicate only contributes purpose text the
// kept entry does not already contain, never its version. Categories come out
// as main, dev, test, then the rest alphabetically, packages in first-seen
// order. The ecosystem is the first one any source names.
func Merge(sources ...types.DependencySpec) types.DependencySpec {
	type group struct {
		pkgs  []types.Package
		index map[string]int
	}
	groups := map[types.Category]*group{}
	var out types.DependencySpec

	for _, src := range sources {
		if out.Ecosystem == "" {
			out.Ecosystem = src.Ecosystem
		}
		for _, g := range src.Groups {
			cat := NormalizeCategory(g.Category)
			grp := groups[cat]
			if grp == nil {
				grp = &group{index: map[string]int{}}
				groups[cat] = grp
			}
			for _, p := range g.Packages {
				p, ok := clean(p)
				if !ok {
					continue
				}
				key := NormalizeName(p.Name)
				if i, seen := grp.index[key]; seen {
					grp.pkgs[i].Purpose = appendPurpose(grp.pkgs[i].Purpose, p.Purpose)
					continue
				}
				grp.index[key] = len(grp.pkgs)
				grp.pkgs = append(grp.pkgs, p)
			}
		}
	}

	cats := make([]types.Category, 0, len(groups))
	for c, g := range groups {
		if len(g.pkgs) > 0 {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool {
		ri, iok := categoryRank[cats[i]]
		rj, jok := categoryRank[cats[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return cats[i] < cats[j]
	})
	out.Groups = make([]types.PackageGroup, 0, len(cats))
	for _, c := range cats {
		out.Groups = append(out.Groups, types.PackageGroup{Category: c, Packages: groups[c].pkgs})
	}
	return out
}

// clean trims p and moves a specifier embedded in the name into Version.
func clean(p types.Package) (types.Package, bool) {
	name, spec := SplitSpecifier(p.Name)
	if name == "" {
		return p, false
	}
	p.Name = name
	p.Version = strings.TrimSpace(p.Version)
	if p.Version == "" {
		p.Version = spec
	}
	p.Purpose = strings.TrimSpace(p.Purpose)
	return p, true
}

func appendPurpose(kept, extra string) string {
	extra = strings.TrimSpace(extra)
	switch {
	case extra == "":
		return kept
	case kept == "":
		return extra
	case strings.Contains(strings.ToLower(kept), strings.ToLower(extra)):
		return kept
	}
	return kept + "; " + extra
}

// Duplicates returns the normalized names that occur more than once within a
// category. A merged spec has none.
func Duplicates(spec types.DependencySpec) []string {
	var dups []string
	for _, g := range spec.Groups {
		seen := map[string]bool{}
		for _, p := range g.Packages {
			k := NormalizeName(p.Name)
			if seen[k] {
				dups = append(dups, string(g.Category)+":"+k)
			}
			seen[k] = true
		}
	}
	return dups
}
