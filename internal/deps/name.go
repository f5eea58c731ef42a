package deps

import (
	"regexp"
	"strings"
)

// SplitSpecifier separates a requirement string into its name and version
// part: "requests[socks]>=2.31" gives "requests[socks]" and ">=2.31",
// "@types/node@^20" gives "@types/node" and "^20", a Go module line
// "github.com/spf13/cobra v1.8.1" gives the path and "v1.8.1".
func SplitSpecifier(s string) (name, version string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.Index(s, ";"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	start := 0
	if strings.HasPrefix(s, "@") {
		start = 1
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch c := s[i]; c {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '=', '<', '>', '!', '~', '^', ' ', '\t', '@':
			if depth > 0 {
				continue
			}
			return strings.TrimSpace(s[:i]), strings.TrimLeft(strings.TrimSpace(s[i:]), "@ \t")
		}
	}
	return s, ""
}

var (
	extras   = regexp.MustCompile(`\[[^\]]*\]`)
	pepRunes = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName is the de-duplication key of a package: specifier and
// extras removed, lower-cased. Plain names also fold runs of "-", "_" and
// "." together, the way pip compares distributions.
func NormalizeName(s string) string {
	name, _ := SplitSpecifier(s)
	name = extras.ReplaceAllString(name, "")
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.ContainsAny(name, "/@:") {
		name = pepRunes.ReplaceAllString(name, "-")
	}
	return name
}
