package query

import (
	"strings"
	"unicode"
)

// Defaults applied by New when the caller leaves a field unset.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxSources  = 8
	DefaultTokenBudget = 2048
	DefaultStyle       = "concise"
	DefaultLang        = "en"
)

// Query is the immutable root object of a single answering run. Text is the
// user's question after whitespace normalization; the remaining fields bound
// how much evidence is gathered and how the answer is phrased.
type Query struct {
	Text        string
	Model       string
	MaxSources  int
	TokenBudget int
	Style       string
	Lang        string
}

// Params carries the optional knobs for New. Zero values mean "use the
// default"; New never mutates the Params it is given.
type Params struct {
	Model       string
	MaxSources  int
	TokenBudget int
	Style       string
	Lang        string
}

// New builds a Query from raw user text. The text is trimmed and inner runs
// of whitespace are collapsed to single spaces so that logically identical
// questions produce identical cache keys downstream. Unset Params fields are
// filled with package defaults.
func New(text string, p Params) Query {
	q := Query{
		Text:        NormalizeText(text),
		Model:       strings.TrimSpace(p.Model),
		MaxSources:  p.MaxSources,
		TokenBudget: p.TokenBudget,
		Style:       strings.ToLower(strings.TrimSpace(p.Style)),
		Lang:        strings.ToLower(strings.TrimSpace(p.Lang)),
	}
	if q.Model == "" {
		q.Model = DefaultModel
	}
	if q.MaxSources <= 0 {
		q.MaxSources = DefaultMaxSources
	}
	if q.TokenBudget <= 0 {
		q.TokenBudget = DefaultTokenBudget
	}
	if q.Style == "" {
		q.Style = DefaultStyle
	}
	if q.Lang == "" {
		q.Lang = DefaultLang
	}
	return q
}

// IsEmpty reports whether the query has no question text. Empty queries are
// rejected before any network work starts.
func (q Query) IsEmpty() bool {
	return q.Text == ""
}

// NormalizeText trims the string and collapses any run of Unicode whitespace
// (including newlines pasted from a terminal) into a single ASCII space.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
