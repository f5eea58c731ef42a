package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxDescriptionLength = 5000
	MaxProjectNameLength        = 100
)

var projectNameRe = regexp.MustCompile(`^[a-zA-Z][\w\-]*$`)

// ValidProjectName reports whether name can be used as a project root.
func ValidProjectName(name string) bool {
	return len(name) <= MaxProjectNameLength && projectNameRe.MatchString(name)
}

// Validate trims req and rejects it when the description is empty or too
// long or the project name is malformed. An empty name is allowed; it is
// derived later.
func Validate(req Request, maxDescription int) (Request, error) {
	if maxDescription <= 0 {
		maxDescription = DefaultMaxDescriptionLength
	}
	req.Description = strings.TrimSpace(req.Description)
	req.ProjectName = strings.TrimSpace(req.ProjectName)
	if req.Description == "" {
		return req, &ValidationError{Field: "description", Message: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.Description); n > maxDescription {
		return req, &ValidationError{Field: "description", Message: fmt.Sprintf("is %d characters, limit is %d", n, maxDescription)}
	}
	if req.ProjectName != "" && !ValidProjectName(req.ProjectName) {
		return req, &ValidationError{
			Field:   "project_name",
			Message: fmt.Sprintf("must start with a letter, contain only letters, digits, '_' or '-' and be at most %d characters", MaxProjectNameLength),
		}
	}
	return req, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a valid project name from free text: the first few words,
// lower-cased and dash-joined.
func Slugify(text string) string {
	words := strings.Fields(strings.ToLower(text))
	var parts []string
	for _, w := range words {
		w = strings.Trim(slugRe.ReplaceAllString(w, "-"), "-")
		if w == "" {
			continue
		}
		parts = append(parts, w)
		if len(parts) == 4 {
			break
		}
	}
	s := strings.Join(parts, "-")
	s = strings.TrimLeft(s, "0123456789-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if !ValidProjectName(s) {
		return "project"
	}
	return s
}
