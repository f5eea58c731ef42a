package extract

import (
	"strings"

	"gopkg.in/yaml.v3"

	"projectarchitect/internal/util/jsonutil"
)

// Strategy recovers a generic value from raw text. It reports false when
// nothing parseable was found; it never panics or guesses.
type Strategy struct {
	Name string
	Fn   func(raw string, shape Shape) (any, bool)
	// Conclusive ends the chain once Fn yields a value of the right form,
	// complete or not.
	Conclusive bool
}

const (
	StrategyWhole    = "whole_json"
	StrategyFenced   = "fenced_block"
	StrategyBalanced = "balanced_span"
	StrategyKeyValue = "key_value"
)

// DefaultStrategies returns the ordered fallback chain.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyWhole, Fn: parseWhole, Conclusive: true},
		{Name: StrategyFenced, Fn: parseFenced},
		{Name: StrategyBalanced, Fn: parseBalanced},
		{Name: StrategyKeyValue, Fn: parseKeyValue},
	}
}

func parseJSON(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := jsonutil.UnmarshalFlex([]byte(s), &v); err != nil {
		return nil, false
	}
	switch x := v.(type) {
	case map[string]any, []any:
		return v, true
	case string:
		// a JSON document that was itself JSON-quoted
		if inner := strings.TrimSpace(x); inner != s {
			return parseJSON(inner)
		}
	}
	return nil, false
}

func parseYAML(s string) (any, bool) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	v = normalizeGeneric(v)
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

func parseWhole(raw string, _ Shape) (any, bool) {
	return parseJSON(raw)
}

type fence struct {
	tag  string
	body string
}

// fences returns the ``` (or ~~~) blocks of raw in order. An unterminated
// block runs to the end of the text.
func fences(raw string) []fence {
	var (
		out    []fence
		open   bool
		marker string
		cur    fence
		body   []string
	)
	for _, ln := range strings.Split(raw, "\n") {
		t := strings.TrimSpace(ln)
		if !open {
			for _, m := range []string{"```", "~~~"} {
				if strings.HasPrefix(t, m) {
					open, marker = true, m
					tag := strings.TrimSpace(strings.TrimLeft(t, m[:1]))
					if i := strings.IndexAny(tag, " \t{"); i >= 0 {
						tag = tag[:i]
					}
					cur = fence{tag: strings.ToLower(tag)}
					body = body[:0]
					break
				}
			}
			continue
		}
		if strings.HasPrefix(t, marker) && strings.TrimLeft(t, marker[:1]) == "" {
			cur.body = strings.Join(body, "\n")
			out = append(out, cur)
			open = false
			continue
		}
		body = append(body, ln)
	}
	if open {
		cur.body = strings.Join(body, "\n")
		out = append(out, cur)
	}
	return out
}

func parseFenced(raw string, _ Shape) (any, bool) {
	for _, f := range fences(raw) {
		switch f.tag {
		case "json", "json5", "jsonc":
			if v, ok := parseJSON(f.body); ok {
				return v, true
			}
			if v, ok := parseYAML(f.body); ok {
				return v, true
			}
		case "yaml", "yml":
			if v, ok := parseYAML(f.body); ok {
				return v, true
			}
		case "":
			if v, ok := parseJSON(f.body); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func parseBalanced(raw string, _ Shape) (any, bool) {
	for start := 0; start < len(raw); {
		i := strings.IndexAny(raw[start:], "{[")
		if i < 0 {
			return nil, false
		}
		i += start
		if end, ok := matchSpan(raw, i); ok {
			if v, ok := parseJSON(raw[i : end+1]); ok {
				return v, true
			}
		}
		start = i + 1
	}
	return nil, false
}

// matchSpan returns the index of the bracket closing raw[open], skipping
// brackets inside JSON strings.
func matchSpan(raw string, open int) (int, bool) {
	var stack []byte
	inStr, esc := false, false
	for i := open; i < len(raw); i++ {
		c := raw[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
