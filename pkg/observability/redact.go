package observability

import (
	"fmt"
	"regexp"
)

// Mask replaces redacted values.
const Mask = "***"

// DefaultSensitiveKeys match argument names that identify a traveller or
// carry credentials.
var DefaultSensitiveKeys = []string{
	`(?i)passenger`,
	`(?i)ticket_no`,
	`(?i)passport`,
	`(?i)email`,
	`(?i)phone`,
	`(?i)password|secret|token|api_key`,
}

// Redactor masks the values of keys matching any of its patterns.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the key patterns.
func NewRedactor(patterns ...string) (*Redactor, error) {
	r := &Redactor{patterns: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns[i] = re
	}
	return r, nil
}

// MustRedactor is NewRedactor for patterns known at compile time.
func MustRedactor(patterns ...string) *Redactor {
	r, err := NewRedactor(patterns...)
	if err != nil {
		panic(err)
	}
	return r
}

// Redact returns a copy of args with sensitive values masked, recursing into
// nested maps and slices. A nil Redactor returns args unchanged.
func (r *Redactor) Redact(args map[string]any) map[string]any {
	if r == nil || args == nil {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if r.sensitive(k) {
			out[k] = Mask
			continue
		}
		out[k] = r.value(v)
	}
	return out
}

func (r *Redactor) value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return r.Redact(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.value(e)
		}
		return out
	default:
		return v
	}
}

func (r *Redactor) sensitive(key string) bool {
	for _, p := range r.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
