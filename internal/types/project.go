package types

import (
	"strings"
	"unicode"
)

// ProjectKind is the tag produced by the Analyze stage.
type ProjectKind string

const (
	KindPython     ProjectKind = "PYTHON"
	KindJavaScript ProjectKind = "JAVASCRIPT"
	KindTypeScript ProjectKind = "TYPESCRIPT"
	KindReact      ProjectKind = "REACT"
	KindAngular    ProjectKind = "ANGULAR"
	KindVue        ProjectKind = "VUE"
	KindNode       ProjectKind = "NODE"
	KindDjango     ProjectKind = "DJANGO"
	KindFlask      ProjectKind = "FLASK"
	KindFastAPI    ProjectKind = "FASTAPI"
	KindExpress    ProjectKind = "EXPRESS"
	KindGo         ProjectKind = "GO"
	KindWeb        ProjectKind = "WEB"
	KindMobile     ProjectKind = "MOBILE"
	KindDesktop    ProjectKind = "DESKTOP"
	KindLibrary    ProjectKind = "LIBRARY"
	KindCLI        ProjectKind = "CLI"
	KindAPI        ProjectKind = "API"
	KindFullstack  ProjectKind = "FULLSTACK"
	KindGeneric    ProjectKind = "GENERIC"
)

// ProjectKinds lists every accepted tag in a stable order.
var ProjectKinds = []ProjectKind{
	KindPython, KindJavaScript, KindTypeScript, KindReact, KindAngular, KindVue,
	KindNode, KindDjango, KindFlask, KindFastAPI, KindExpress, KindGo, KindWeb,
	KindMobile, KindDesktop, KindLibrary, KindCLI, KindAPI, KindFullstack, KindGeneric,
}

var kindSynonyms = map[string]ProjectKind{
	"COMMANDLINE":     KindCLI,
	"COMMANDLINETOOL": KindCLI,
	"CLITOOL":         KindCLI,
	"CONSOLE":         KindCLI,
	"GOLANG":          KindGo,
	"JS":              KindJavaScript,
	"TS":              KindTypeScript,
	"NODEJS":          KindNode,
	"REACTJS":         KindReact,
	"VUEJS":           KindVue,
	"EXPRESSJS":       KindExpress,
	"WEBAPP":          KindWeb,
	"WEBAPPLICATION":  KindWeb,
	"RESTAPI":         KindAPI,
	"WEBAPI":          KindAPI,
	"MOBILEAPP":       KindMobile,
	"DESKTOPAPP":      KindDesktop,
	"FULLSTACKAPP":    KindFullstack,
}

// ParseProjectKind maps free-form model output ("cli", "Command-line tool",
// "**CLI**") onto a known tag. Separators, punctuation and case are ignored.
func ParseProjectKind(s string) (ProjectKind, bool) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	key := b.String()
	if key == "" {
		return "", false
	}
	for _, k := range ProjectKinds {
		if string(k) == key {
			return k, true
		}
	}
	if k, ok := kindSynonyms[key]; ok {
		return k, true
	}
	return "", false
}

// ProjectType is immutable once the Analyze stage produced it.
type ProjectType struct {
	Tag          ProjectKind `json:"tag"`
	Rationale    string      `json:"rationale"`
	Language     string      `json:"language,omitempty"`
	Technologies []string    `json:"technologies,omitempty"`
	Subtypes     []string    `json:"subtypes,omitempty"`
}

func (p ProjectType) String() string { return strings.ToLower(string(p.Tag)) + " project" }

// Requirement is a single extracted requirement. Order mirrors model output.
type Requirement string

// Analysis is the Analyze stage output.
type Analysis struct {
	ProjectType  ProjectType   `json:"project_type"`
	Requirements []Requirement `json:"requirements"`
	ProjectName  string        `json:"project_name,omitempty"`
}
