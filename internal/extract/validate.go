package extract

import (
	"fmt"
	"strconv"
	"strings"

	"projectarchitect/internal/util/jsonutil"
)

// validate coerces a parsed value into the canonical form of shape. Objects
// become map[string]any keyed by Field.Name, lists become []any of those
// maps, list fields become []any of strings. missing names every required
// field that could not be recovered; the value is still returned so the
// caller can attach it as a partial result.
func validate(v any, shape Shape) (any, []string, bool) {
	v = normalizeGeneric(v)
	if shape.Prepare != nil {
		v = shape.Prepare(v)
	}
	if shape.List {
		items, ok := listOf(v, shape)
		if !ok {
			return nil, []string{shape.Name}, false
		}
		out, missing := validateRecords(items, shape, "")
		return out, missing, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		if arr, isArr := v.([]any); isArr && len(arr) == 1 {
			m, ok = arr[0].(map[string]any)
		}
	}
	if !ok {
		return nil, []string{shape.Name}, false
	}
	out, missing := validateRecord(m, shape.Fields, "")
	return out, missing, true
}

func validateRecords(items []any, shape Shape, prefix string) ([]any, []string) {
	out := make([]any, 0, len(items))
	var missing []string
	for i, it := range items {
		p := fmt.Sprintf("%s[%d].", prefix, i)
		m, ok := it.(map[string]any)
		if !ok {
			missing = append(missing, strings.TrimSuffix(p, "."))
			continue
		}
		rec, miss := validateRecord(m, shape.Fields, p)
		out = append(out, rec)
		missing = append(missing, miss...)
	}
	if len(out) < shape.MinItems {
		label := prefix
		if label == "" {
			label = shape.Name
		}
		missing = append(missing, fmt.Sprintf("%s (at least %d)", label, shape.MinItems))
	}
	return out, missing
}

func validateRecord(m map[string]any, fields []Field, prefix string) (map[string]any, []string) {
	index := make(map[string]any, len(m))
	for k, v := range m {
		nk := normKey(k)
		if _, dup := index[nk]; !dup {
			index[nk] = v
		}
	}
	out := map[string]any{}
	var missing []string
	for _, f := range fields {
		var (
			raw   any
			found bool
		)
		for _, k := range f.keys() {
			if raw, found = index[k]; found {
				break
			}
		}
		switch {
		case f.Records != nil:
			items, ok := listOf(raw, *f.Records)
			if !found || !ok {
				if f.Required {
					missing = append(missing, prefix+f.Name)
				}
				continue
			}
			recs, miss := validateRecords(items, *f.Records, prefix+f.Name)
			out[f.Name] = recs
			missing = append(missing, miss...)
			if f.Required && len(recs) == 0 {
				missing = append(missing, prefix+f.Name)
			}
		case f.List:
			list := toStringList(raw)
			if len(list) == 0 {
				if f.Required {
					missing = append(missing, prefix+f.Name)
				}
				continue
			}
			out[f.Name] = list
		default:
			s := strings.TrimSpace(toString(raw))
			if s == "" {
				if f.Required {
					missing = append(missing, prefix+f.Name)
				}
				continue
			}
			out[f.Name] = s
		}
	}
	return out, missing
}

// listOf finds the record list inside v: a bare list, a wrapper key, the only
// list-valued key of a map, or a single record standing alone.
func listOf(v any, shape Shape) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case map[string]any:
		wrappers := append([]string{shape.Name}, shape.Wrappers...)
		for _, w := range wrappers {
			for k, vv := range x {
				if normKey(k) == normKey(w) {
					if arr, ok := vv.([]any); ok {
						return arr, true
					}
				}
			}
		}
		var lists [][]any
		for _, vv := range x {
			if arr, ok := vv.([]any); ok {
				lists = append(lists, arr)
			}
		}
		if len(lists) == 1 && !looksLikeRecord(x, shape) {
			return lists[0], true
		}
		if looksLikeRecord(x, shape) {
			return []any{x}, true
		}
	}
	return nil, false
}

func looksLikeRecord(m map[string]any, shape Shape) bool {
	for k := range m {
		for _, f := range shape.Fields {
			if f.Records != nil {
				continue
			}
			for _, fk := range f.keys() {
				if normKey(k) == fk {
					return true
				}
			}
		}
	}
	return false
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, it := range x {
			if s := strings.TrimSpace(toString(it)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := jsonutil.MarshalNoEscape(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func toStringList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, 0, len(x))
		for _, it := range x {
			if s := strings.TrimSpace(toString(it)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return splitList(x)
	default:
		if s := strings.TrimSpace(toString(x)); s != "" {
			return []any{s}
		}
		return nil
	}
}

// splitList turns a free-text list into items: one per bullet line when the
// value spans lines, otherwise split on ";" or ",".
func splitList(s string) []any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	if strings.Contains(s, "\n") {
		for _, ln := range strings.Split(s, "\n") {
			parts = append(parts, stripBullet(ln))
		}
	} else if strings.Contains(s, ";") {
		parts = strings.Split(s, ";")
	} else {
		parts = strings.Split(s, ",")
	}
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeGeneric converts YAML-decoded maps with non-string keys into
// map[string]any so every strategy yields the same generic form.
func normalizeGeneric(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = normalizeGeneric(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[fmt.Sprint(k)] = normalizeGeneric(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalizeGeneric(x[i])
		}
		return out
	default:
		return v
	}
}
