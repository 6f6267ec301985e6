// Package tags matches scenario tags against Cucumber tag expressions.
package tags

import (
	"fmt"
	"sort"
	"strings"

	tagexpressions "github.com/cucumber/tag-expressions/go/v6"
)

// TagSet is the set of tags declared on a scenario. Tags are stored with
// their leading "@".
type TagSet map[string]struct{}

// NewTagSet builds a TagSet, adding the "@" prefix where it is missing.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		if t = normalize(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains tag ("@a" and "a" are equivalent).
func (s TagSet) Has(tag string) bool {
	_, ok := s[normalize(tag)]
	return ok
}

// Len returns the number of tags.
func (s TagSet) Len() int {
	return len(s)
}

// Slice returns the tags sorted.
func (s TagSet) Slice() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if !strings.HasPrefix(tag, "@") {
		tag = "@" + tag
	}
	return tag
}

// Predicate is a pure boolean function over a scenario's tags.
type Predicate interface {
	Match(tags TagSet) bool
	String() string
}

// Parse compiles a Cucumber tag expression such as
// "@agentnet and not @deeplink". The empty expression matches every scenario.
func Parse(expr string) (Predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return Always(), nil
	}
	ev, err := tagexpressions.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid tag expression %q: %w", expr, err)
	}
	return expression{source: expr, ev: ev}, nil
}

// MustParse is Parse for static registrations; it panics on a malformed expression.
func MustParse(expr string) Predicate {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

type expression struct {
	source string
	ev     tagexpressions.Evaluatable
}

func (e expression) Match(tags TagSet) bool {
	return e.ev.Evaluate(tags.Slice())
}

func (e expression) String() string {
	return e.source
}

// Always matches every scenario.
func Always() Predicate {
	return always{}
}

type always struct{}

func (always) Match(TagSet) bool { return true }
func (always) String() string    { return "" }

// Not is the exact complement of p. Pairs built as (p, Not(p)) partition
// scenarios: every tag set matches exactly one of them.
func Not(p Predicate) Predicate {
	return not{p}
}

type not struct{ p Predicate }

func (n not) Match(tags TagSet) bool { return !n.p.Match(tags) }
func (n not) String() string {
	if n.p.String() == "" {
		return "not (*)"
	}
	return "not (" + n.p.String() + ")"
}

// Func adapts a plain function to a Predicate.
func Func(name string, fn func(TagSet) bool) Predicate {
	return funcPredicate{name: name, fn: fn}
}

type funcPredicate struct {
	name string
	fn   func(TagSet) bool
}

func (f funcPredicate) Match(tags TagSet) bool { return f.fn(tags) }
func (f funcPredicate) String() string         { return f.name }
