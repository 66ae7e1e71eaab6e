package categories

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"expenses/internal/cache"
)

const (
	// FallbackLarge is used when no keyword matches and the amount exceeds 5000.
	FallbackLarge = "large purchases"
	// FallbackOther is used when nothing else applies.
	FallbackOther = "other"
)

var largeFallbackAbove = decimal.NewFromInt(5000)

// Matcher assigns a category by scanning keyword rules in order. The first
// category with a keyword contained in the description wins.
type Matcher struct {
	rules  Rules
	folded [][]string
	cache  cache.Cache[string]
}

type Option func(*Matcher)

// WithCache memoizes results per folded description and amount class.
func WithCache(c cache.Cache[string]) Option {
	return func(m *Matcher) {
		m.cache = c
	}
}

func NewMatcher(rules Rules, opts ...Option) *Matcher {
	m := &Matcher{
		rules:  rules,
		folded: make([][]string, len(rules.categories)),
	}
	for i, c := range rules.categories {
		m.folded[i] = make([]string, len(c.Keywords))
		for j, kw := range c.Keywords {
			m.folded[i][j] = Fold(kw)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DetermineCategory returns the first matching category, or a fallback when
// no keyword matches.
func (m *Matcher) DetermineCategory(description string, amount decimal.Decimal) string {
	text := Fold(description)
	large := amount.GreaterThan(largeFallbackAbove)

	var key string
	if m.cache != nil {
		key = cacheKey(text, large)
		if name, ok := m.cache.Get(key); ok {
			return name
		}
	}

	name := m.match(text)
	if name == "" {
		name = FallbackOther
		if large {
			name = FallbackLarge
		}
	}

	if m.cache != nil {
		m.cache.Set(key, name)
	}
	return name
}

func (m *Matcher) match(text string) string {
	for i, keywords := range m.folded {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return m.rules.categories[i].Name
			}
		}
	}
	return ""
}

// AvailableCategories lists configured names followed by the two fallbacks,
// without duplicates.
func (m *Matcher) AvailableCategories() []string {
	names := append(m.rules.Names(), FallbackLarge, FallbackOther)
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Fold returns the Unicode case-folded form of s for case-insensitive comparison.
func Fold(s string) string {
	// Casers are stateful; one per call.
	return cases.Fold().String(s)
}

// EqualFold reports whether a and b are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

func cacheKey(folded string, large bool) string {
	if large {
		return "L|" + folded
	}
	return "S|" + folded
}
