// Package prompt holds chat prompt templates and their rendering.
package prompt

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

// Part is one templated message. Text may reference variables as {name};
// "{{" and "}}" render literal braces.
type Part struct {
	Role domain.Role
	Text string
}

// Template is an ordered list of templated messages.
type Template struct {
	parts []Part
}

// New creates a Template from parts, in order.
func New(parts ...Part) Template {
	return Template{parts: slices.Clone(parts)}
}

// System is shorthand for a system Part.
func System(text string) Part { return Part{Role: domain.RoleSystem, Text: text} }

// User is shorthand for a user Part.
func User(text string) Part { return Part{Role: domain.RoleUser, Text: text} }

// Len returns the number of messages Format produces.
func (t Template) Len() int { return len(t.parts) }

// Variables returns the distinct variable names referenced by the template, in first-use order.
func (t Template) Variables() []string {
	var names []string
	for _, p := range t.parts {
		for _, seg := range parse(p.Text) {
			if seg.variable && !slices.Contains(names, seg.text) {
				names = append(names, seg.text)
			}
		}
	}
	return names
}

// Format substitutes vars into every part. Extra keys are ignored;
// a referenced key missing from vars yields a *domain.MissingFieldError.
func (t Template) Format(vars map[string]string) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(t.parts))
	for _, p := range t.parts {
		var b strings.Builder
		for _, seg := range parse(p.Text) {
			if !seg.variable {
				b.WriteString(seg.text)
				continue
			}
			v, ok := vars[seg.text]
			if !ok {
				return nil, domain.NewMissingField(seg.text)
			}
			b.WriteString(v)
		}
		out = append(out, domain.Message{Role: p.Role, Content: b.String()})
	}
	return out, nil
}

type segment struct {
	text     string
	variable bool
}

// parse splits text into literal and variable segments. A brace that does not
// open a well-formed {name} is kept as literal text.
func parse(text string) []segment {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(text[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case text[i] == '{':
			end := strings.IndexByte(text[i+1:], '}')
			name := ""
			if end >= 0 {
				name = text[i+1 : i+1+end]
			}
			if end < 0 || !domain.IsValidIdentifier(name) {
				lit.WriteByte('{')
				i++
				continue
			}
			flush()
			segs = append(segs, segment{text: name, variable: true})
			i += end + 2
		default:
			lit.WriteByte(text[i])
			i++
		}
	}
	flush()
	return segs
}
