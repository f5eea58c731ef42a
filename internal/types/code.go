package types

import (
	"path"
	"strings"
)

// CodeFile is one generated file.
type CodeFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// NewCodeFile infers the language from the extension unless language is set.
func NewCodeFile(p, content, language string) CodeFile {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = InferLanguage(p)
	}
	return CodeFile{Path: p, Content: content, Language: language}
}

var languageByExt = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".swift": "swift",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sass":  "sass",
	".less":  "less",
	".json":  "json",
	".md":    "markdown",
	".yml":   "yaml",
	".yaml":  "yaml",
	".toml":  "toml",
	".xml":   "xml",
	".sql":   "sql",
	".sh":    "shell",
	".bash":  "shell",
	".txt":   "text",
	".cfg":   "ini",
	".ini":   "ini",
}

var languageByName = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
	"go.mod":     "go-module",
	".gitignore": "gitignore",
}

// sourceLanguages are languages that count as program source rather than
// configuration or docs.
var sourceLanguages = map[string]bool{
	"python": true, "javascript": true, "typescript": true, "go": true,
	"rust": true, "java": true, "kotlin": true, "ruby": true, "php": true,
	"csharp": true, "c": true, "cpp": true, "swift": true, "shell": true,
}

// InferLanguage derives a language from the file name. Unknown extensions
// yield "text".
func InferLanguage(p string) string {
	base := strings.ToLower(path.Base(p))
	if lang, ok := languageByName[base]; ok {
		return lang
	}
	if lang, ok := languageByExt[strings.ToLower(path.Ext(base))]; ok {
		return lang
	}
	return "text"
}

// IsSourceFile reports whether p has a recognised program-source extension.
func IsSourceFile(p string) bool {
	lang, ok := languageByExt[strings.ToLower(path.Ext(p))]
	return ok && sourceLanguages[lang]
}
