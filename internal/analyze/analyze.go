package analyze

import (
	"sort"
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
	prose "github.com/jdkato/prose/v2"
	"golang.org/x/text/unicode/norm"
)

// Entity is one named entity with its type label. Text is lowercased so
// entity overlap between query and passage compares cleanly.
type Entity struct {
	Text  string
	Label string
}

// Features is the linguistic profile of one piece of text. All slices are
// sorted and duplicate-free so feature bundles compare deterministically.
type Features struct {
	Tokens     []string
	Entities   []Entity
	Keyphrases []string
	TokenCount int
}

// Empty reports whether no usable lexical signal was found.
func (f Features) Empty() bool {
	return len(f.Tokens) == 0 && len(f.Entities) == 0
}

// entityLabels are the entity types worth keeping for overlap scoring.
// Other labels (quantities, percentages and similar) add noise, not signal.
var entityLabels = map[string]struct{}{
	"ORG":     {},
	"PERSON":  {},
	"GPE":     {},
	"DATE":    {},
	"EVENT":   {},
	"PRODUCT": {},
}

// Analyzer derives Features from text. The zero value is ready to use; a
// single Analyzer is safe for concurrent use because Analyze keeps no state.
type Analyzer struct{}

// Analyze tokenizes, tags and runs NER over text, then reduces the result
// to stemmed lowercase tokens, filtered entities and keyphrases. It is a
// pure function of its input; empty or non-linguistic text yields empty
// Features, never an error.
func (Analyzer) Analyze(text string) Features {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return Features{}
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return Features{}
	}

	tokens := doc.Tokens()
	var f Features
	f.TokenCount = countWordTokens(tokens)
	f.Tokens = stemmedTokens(tokens)
	f.Entities = entitiesFrom(doc.Entities())
	f.Keyphrases = keyphrasesFrom(tokens)
	return f
}

func countWordTokens(tokens []prose.Token) int {
	n := 0
	for _, tok := range tokens {
		if strings.ContainsFunc(tok.Text, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) {
			n++
		}
	}
	return n
}

func stemmedTokens(tokens []prose.Token) []string {
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		word := strings.ToLower(tok.Text)
		if !isWord(word) {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		stem := porterstemmer.StemString(word)
		if stem == "" {
			continue
		}
		seen[stem] = struct{}{}
	}
	return sortedKeys(seen)
}

// isWord accepts tokens made of letters, allowing internal hyphens and
// apostrophes, and rejects anything numeric or symbolic.
func isWord(s string) bool {
	hasLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == '-' || r == '\'':
		default:
			return false
		}
	}
	return hasLetter
}

func entitiesFrom(ents []prose.Entity) []Entity {
	seen := make(map[Entity]struct{})
	for _, e := range ents {
		if _, ok := entityLabels[e.Label]; !ok {
			continue
		}
		text := strings.ToLower(strings.Join(strings.Fields(e.Text), " "))
		if text == "" {
			continue
		}
		seen[Entity{Text: text, Label: e.Label}] = struct{}{}
	}
	out := make([]Entity, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Text != out[j].Text {
			return out[i].Text < out[j].Text
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// keyphrasesFrom joins consecutive adjective/noun runs of two or more
// words into phrases, the POS analogue of noun chunking.
func keyphrasesFrom(tokens []prose.Token) []string {
	seen := make(map[string]struct{})
	var run []string
	flush := func() {
		if len(run) >= 2 {
			seen[strings.Join(run, " ")] = struct{}{}
		}
		run = run[:0]
	}
	for _, tok := range tokens {
		if isChunkTag(tok.Tag) && isWord(strings.ToLower(tok.Text)) {
			run = append(run, strings.ToLower(tok.Text))
			continue
		}
		flush()
	}
	flush()
	return sortedKeys(seen)
}

func isChunkTag(tag string) bool {
	return strings.HasPrefix(tag, "JJ") || strings.HasPrefix(tag, "NN")
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
