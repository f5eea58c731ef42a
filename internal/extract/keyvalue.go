package extract

import (
	"regexp"
	"strings"
)

// kvLine matches "Key: value" with optional list markers and markdown
// emphasis around the key ("- **Name**: api", "1. Name: api").
var kvLine = regexp.MustCompile(`^\s*(?:[-*+•]\s+|\d+[.)]\s+)?(?:\*\*|__)?([A-Za-z][A-Za-z0-9 _\-]{0,48}?)\s*(?:\*\*|__)?\s*:\s*(?:\*\*|__)?\s*(.*)$`)

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*+•]\s+|\d+[.)]\s+)`)

func stripBullet(s string) string {
	return strings.TrimSpace(bulletPrefix.ReplaceAllString(s, ""))
}

type kvPair struct {
	key   string // normalized
	label string // as written
	value string
}

type kvRecord []kvPair

func (r kvRecord) has(key string) bool {
	for _, p := range r {
		if p.key == key {
			return true
		}
	}
	return false
}

// kvRecords splits raw into records of known keys. A blank line, a markdown
// heading or rule, or a repeated key closes the current record; lines that
// are not "Key: value" continue the previous value.
func kvRecords(raw string, vocab map[string]bool) []kvRecord {
	var (
		out []kvRecord
		cur kvRecord
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, ln := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		t := strings.TrimSpace(ln)
		if t == "" && len(cur) > 0 && cur[len(cur)-1].value == "" {
			// a key whose value starts on a later line stays open
			continue
		}
		if t == "" || strings.HasPrefix(t, "#") || isRule(t) {
			flush()
			continue
		}
		if m := kvLine.FindStringSubmatch(ln); m != nil {
			key := normKey(m[1])
			if vocab[key] {
				if cur.has(key) {
					flush()
				}
				cur = append(cur, kvPair{key: key, label: strings.TrimSpace(m[1]), value: strings.TrimSpace(m[2])})
				continue
			}
		}
		if len(cur) == 0 {
			continue
		}
		last := &cur[len(cur)-1]
		if last.value == "" {
			last.value = t
		} else {
			last.value += "\n" + t
		}
	}
	flush()
	return out
}

func isRule(t string) bool {
	if len(t) < 3 {
		return false
	}
	for _, c := range []string{"-", "*", "_", "="} {
		if strings.Trim(t, c) == "" {
			return true
		}
	}
	return false
}

func (r kvRecord) toMap() map[string]any {
	m := make(map[string]any, len(r))
	for _, p := range r {
		m[p.key] = p.value
	}
	return m
}

// score counts how many keys of r belong to fields.
func (r kvRecord) score(fields []Field) int {
	n := 0
	for _, f := range fields {
		for _, k := range f.keys() {
			if r.has(k) {
				n++
				break
			}
		}
	}
	return n
}

func parseKeyValue(raw string, shape Shape) (any, bool) {
	recs := kvRecords(raw, shape.vocabulary())
	if len(recs) == 0 {
		return nil, false
	}
	if shape.List {
		items := make([]any, 0, len(recs))
		for _, r := range recs {
			items = append(items, r.toMap())
		}
		return items, true
	}

	// Object shape: records either contribute top-level fields or belong to
	// the nested record list whose fields they match best.
	var own []Field
	var nested []Field
	for _, f := range shape.Fields {
		if f.Records != nil {
			nested = append(nested, f)
		} else {
			own = append(own, f)
		}
	}
	obj := map[string]any{}
	lists := map[string][]any{}
	for _, r := range recs {
		best, bestScore := -1, r.score(own)
		for i, f := range nested {
			if s := r.score(f.Records.Fields); s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			for _, p := range r {
				if _, seen := obj[p.key]; !seen {
					obj[p.key] = p.value
				}
			}
			continue
		}
		name := nested[best].Name
		lists[name] = append(lists[name], r.toMap())
	}
	for name, items := range lists {
		obj[name] = items
	}
	return obj, true
}
