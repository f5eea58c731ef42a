package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"k8s.io/klog/v2"

	"projectarchitect/internal/util/jsonutil"
)

// ExcerptLen bounds the raw-text excerpt carried by ExtractionError.
const ExcerptLen = 200

// Result is a successfully extracted value in canonical form.
type Result struct {
	Strategy string
	Value    any
}

// Decode converts the value into dst (a struct with json tags matching the
// shape's field names).
func (r Result) Decode(dst any) error {
	return jsonutil.Convert(r.Value, dst)
}

// ExtractionError reports that no strategy produced a complete value.
type ExtractionError struct {
	Shape     string
	Attempted []string
	Excerpt   string
	// Partial is the first value that parsed but missed required fields.
	Partial any
	// PartialStrategy names the strategy that produced Partial.
	PartialStrategy string
	Missing         []string
	Reason          string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s: %s (tried %s)", e.Shape, e.Reason, strings.Join(e.Attempted, ", "))
	if len(e.Missing) > 0 {
		msg += "; missing " + strings.Join(e.Missing, ", ")
	}
	return msg
}

// HasPartial reports whether a degraded value is attached.
func (e *ExtractionError) HasPartial() bool { return e.Partial != nil }

// DecodePartial converts the partial value into dst.
func (e *ExtractionError) DecodePartial(dst any) error {
	if e.Partial == nil {
		return fmt.Errorf("extract %s: no partial value", e.Shape)
	}
	return jsonutil.Convert(e.Partial, dst)
}

// Extractor tries its strategies in order; the first one whose value parses
// and validates wins, and later strategies are not invoked.
type Extractor struct {
	Strategies []Strategy
}

func New() *Extractor {
	return &Extractor{Strategies: DefaultStrategies()}
}

// Extract runs the default strategy chain.
func Extract(raw string, shape Shape) (Result, error) {
	return New().Extract(raw, shape)
}

func (x *Extractor) Extract(raw string, shape Shape) (Result, error) {
	ee := &ExtractionError{Shape: shape.Name, Excerpt: excerpt(raw, ExcerptLen)}
	if strings.TrimSpace(raw) == "" {
		ee.Reason = "empty response"
		return Result{}, ee
	}
	for _, s := range x.Strategies {
		ee.Attempted = append(ee.Attempted, s.Name)
		v, ok := s.Fn(raw, shape)
		if !ok {
			continue
		}
		val, missing, shaped := validate(v, shape)
		if shaped && len(missing) == 0 {
			klog.V(5).InfoS("extracted", "shape", shape.Name, "strategy", s.Name)
			return Result{Strategy: s.Name, Value: val}, nil
		}
		if shaped && ee.Partial == nil {
			ee.Partial, ee.PartialStrategy, ee.Missing = val, s.Name, missing
		}
		if shaped && s.Conclusive {
			break
		}
	}
	if ee.Partial != nil {
		ee.Reason = "incomplete value"
	} else {
		ee.Reason = "no structured value found"
	}
	return Result{}, ee
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
