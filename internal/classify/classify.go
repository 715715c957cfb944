// Package classify assigns a display category to a record from keyword
// matching on its title and location text.
package classify

import (
	"strings"

	"claycal/internal/model"
)

// Rule maps a lowercase keyword to a category. Rules are evaluated in
// order; the first match wins.
type Rule struct {
	Keyword  string
	Category model.Category
}

// DefaultCategory is used when no rule matches.
const DefaultCategory = model.Category("Clay County")

// DefaultRules covers the towns of Clay County plus a few recurring
// themes. Ordering matters: "clay city" must precede any broader rule
// that could swallow it.
var DefaultRules = []Rule{
	{Keyword: "clay city", Category: "Clay City"},
	{Keyword: "flora", Category: "Flora"},
	{Keyword: "louisville", Category: "Louisville"},
	{Keyword: "xenia", Category: "Xenia"},
	{Keyword: "sailor springs", Category: "Sailor Springs"},
	{Keyword: "iola", Category: "Iola"},
	{Keyword: "school", Category: "Schools"},
	{Keyword: "library", Category: "Library"},
	{Keyword: "church", Category: "Churches"},
}

// Classifier is a deterministic, case-insensitive first-match-wins rule
// table.
type Classifier struct {
	rules    []Rule
	fallback model.Category
}

// New builds a classifier from an ordered rule list. Empty rules or an
// empty fallback fall back to the package defaults.
func New(rules []Rule, fallback model.Category) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	if fallback == "" {
		fallback = DefaultCategory
	}
	lowered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" || r.Category == "" {
			continue
		}
		lowered = append(lowered, Rule{Keyword: kw, Category: r.Category})
	}
	return &Classifier{rules: lowered, fallback: fallback}
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	return New(nil, "")
}

// Classify is a pure function of (title, location): both are lowercased,
// concatenated, and scanned against the rule table.
func (c *Classifier) Classify(title, location string) model.Category {
	haystack := strings.ToLower(title + " " + location)
	for _, r := range c.rules {
		if strings.Contains(haystack, r.Keyword) {
			return r.Category
		}
	}
	return c.fallback
}
