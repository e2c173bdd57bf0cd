// Package extract turns a rendered page into named result fields using a
// declarative list of rules per field.
package extract

import (
	"regexp"
	"strings"
)

// Block is a class-carrying element of the page and its rendered text.
type Block struct {
	Tag       string
	ClassName string
	Text      string
}

// Document is the read-only view of a page the rules operate on.
type Document struct {
	URL      string
	BodyText string
	// Links holds the absolute href of every anchor in document order.
	Links  []string
	Blocks []Block
}

// Source selects which part of a Document a Rule reads.
type Source int

const (
	// SourceText matches Pattern against the body text.
	SourceText Source = iota
	// SourceLink picks the first link containing Include and not containing
	// Exclude. Pattern, when set, is applied to that link only.
	SourceLink
	// SourceClass picks the first block whose class name contains
	// ClassContains. Pattern, when set, is applied to its text.
	SourceClass
)

func (s Source) String() string {
	switch s {
	case SourceText:
		return "text"
	case SourceLink:
		return "link"
	case SourceClass:
		return "class"
	default:
		return "unknown"
	}
}

// Rule is one way of locating a field value.
type Rule struct {
	Source        Source
	Include       string
	Exclude       string
	ClassContains string
	// Pattern yields its first capture group, or the whole match when it has none.
	Pattern *regexp.Regexp
}

// FieldSpec names a field and the rules tried, in order, to find it.
type FieldSpec struct {
	Name     string
	Rules    []Rule
	Required bool
}

// Spec is the full extraction contract for one page.
type Spec struct {
	Fields []FieldSpec
}

// Result carries the located fields. Fields that were not found are absent
// from the map. BodyText is always the raw page text.
type Result struct {
	Fields   map[string]string
	BodyText string
	missing  []string
}

// Get returns the value of a field and whether it was found.
func (r Result) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Missing lists required fields without a value, in spec order.
func (r Result) Missing() []string {
	return append([]string(nil), r.missing...)
}

// Complete reports whether every required field was found.
func (r Result) Complete() bool {
	return len(r.missing) == 0
}

// Extract evaluates spec against doc. Each field is evaluated on its own and
// the first rule producing a non-empty value wins.
func Extract(doc Document, spec Spec) Result {
	res := Result{
		Fields:   make(map[string]string, len(spec.Fields)),
		BodyText: doc.BodyText,
	}
	for _, field := range spec.Fields {
		value, ok := evaluateField(doc, field)
		if ok {
			res.Fields[field.Name] = value
			continue
		}
		if field.Required {
			res.missing = append(res.missing, field.Name)
		}
	}
	return res
}

func evaluateField(doc Document, field FieldSpec) (string, bool) {
	for _, rule := range field.Rules {
		if v := rule.Apply(doc); v != "" {
			return v, true
		}
	}
	return "", false
}

// Apply runs a single rule and returns "" when it does not produce a value.
func (r Rule) Apply(doc Document) string {
	switch r.Source {
	case SourceLink:
		for _, link := range doc.Links {
			if !strings.Contains(link, r.Include) {
				continue
			}
			if r.Exclude != "" && strings.Contains(link, r.Exclude) {
				continue
			}
			return r.match(link)
		}
	case SourceClass:
		for _, b := range doc.Blocks {
			if strings.Contains(b.ClassName, r.ClassContains) {
				return r.match(b.Text)
			}
		}
	case SourceText:
		return r.match(doc.BodyText)
	}
	return ""
}

func (r Rule) match(s string) string {
	if r.Pattern == nil {
		return strings.TrimSpace(s)
	}
	m := r.Pattern.FindStringSubmatch(s)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return m[1]
	default:
		return m[0]
	}
}
