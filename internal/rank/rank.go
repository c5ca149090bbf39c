package rank

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/goanswer/internal/analyze"
	"github.com/hyperifyio/goanswer/internal/extract"
)

// Candidate is one passage with everything scoring needs attached.
// SourceRank is the provider-order rank of the search hit the passage's
// document came from (1 is best).
type Candidate struct {
	Passage    extract.Passage
	Features   analyze.Features
	SourceRank int
	Title      string
	Published  time.Time
}

// Signals breaks a score into its components for traces and debugging.
// ProviderOrderFallback marks passages ordered by provider rank because the
// query itself carried no lexical signal.
type Signals struct {
	Lexical               float64
	Entity                float64
	SourceBonus           float64
	Credibility           float64
	Recency               float64
	ProviderOrderFallback bool
}

// ScoredPassage is a Candidate with its final score. Scores are comparable
// only within a single run.
type ScoredPassage struct {
	Candidate
	Score   float64
	Signals Signals
}

// Options controls ranking. Now is the reference time for recency so the
// whole ranking is a pure function of its inputs; when zero, recency
// contributes nothing. DedupeThreshold is the token-set Jaccard similarity
// at which two passages count as near-duplicates.
type Options struct {
	Now             time.Time
	DedupeThreshold float64
}

const DefaultDedupeThreshold = 0.8

// Score weights. Relative ordering is what matters; the absolute values
// just keep any single signal from drowning out the rest.
const (
	weightLexical     = 1.0
	weightEntity      = 0.25
	weightSourceBonus = 0.3
	weightCredibility = 0.2
	weightRecency     = 0.15
)

// Rank scores candidates against the query features and returns them best
// first, near-duplicates collapsed. Ordering is deterministic: score desc,
// then SourceRank asc, then Passage.Index asc, then DocURL. A query with no
// tokens and no entities degrades to provider order with zero scores.
func Rank(query analyze.Features, candidates []Candidate, opts Options) []ScoredPassage {
	if opts.DedupeThreshold <= 0 {
		opts.DedupeThreshold = DefaultDedupeThreshold
	}

	scored := make([]ScoredPassage, 0, len(candidates))
	fallback := query.Empty()
	queryTokens := tokenSet(query.Tokens)
	queryEntities := entityTextSet(query.Entities)

	for _, c := range candidates {
		sp := ScoredPassage{Candidate: c}
		if fallback {
			sp.Signals.ProviderOrderFallback = true
		} else {
			sp.Signals = Signals{
				Lexical:     lexicalOverlap(queryTokens, c.Features.Tokens),
				Entity:      float64(sharedEntities(queryEntities, c.Features.Entities)),
				SourceBonus: 1 / float64(1+c.SourceRank),
				Credibility: credibility(hostOf(c.Passage.DocURL)),
				Recency:     recency(c.Published, opts.Now),
			}
			sp.Score = weightLexical*sp.Signals.Lexical +
				weightEntity*sp.Signals.Entity +
				weightSourceBonus*sp.Signals.SourceBonus +
				weightCredibility*sp.Signals.Credibility +
				weightRecency*sp.Signals.Recency
		}
		scored = append(scored, sp)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SourceRank != b.SourceRank {
			return a.SourceRank < b.SourceRank
		}
		if a.Passage.Index != b.Passage.Index {
			return a.Passage.Index < b.Passage.Index
		}
		return a.Passage.DocURL < b.Passage.DocURL
	})

	return dedupe(scored, opts.DedupeThreshold)
}

// dedupe collapses near-duplicate passages greedily in rank order, so the
// highest-scoring representative of each duplicate group survives.
func dedupe(scored []ScoredPassage, threshold float64) []ScoredPassage {
	if threshold > 1 {
		return scored
	}
	kept := make([]ScoredPassage, 0, len(scored))
	keptTokens := make([]map[string]struct{}, 0, len(scored))
	for _, sp := range scored {
		tokens := tokenSet(sp.Features.Tokens)
		dup := false
		for _, prev := range keptTokens {
			if jaccard(tokens, prev) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, sp)
		keptTokens = append(keptTokens, tokens)
	}
	return kept
}

func lexicalOverlap(query map[string]struct{}, passage []string) float64 {
	if len(query) == 0 {
		return 0
	}
	shared := 0
	for _, tok := range passage {
		if _, ok := query[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}

func sharedEntities(query map[string]struct{}, passage []analyze.Entity) int {
	shared := 0
	seen := make(map[string]struct{})
	for _, e := range passage {
		if _, dup := seen[e.Text]; dup {
			continue
		}
		seen[e.Text] = struct{}{}
		if _, ok := query[e.Text]; ok {
			shared++
		}
	}
	return shared
}

// docHosts get a small bump: hosts that mainly serve reference
// documentation tend to be worth quoting.
var docHosts = []string{
	"readthedocs.io",
	"pkg.go.dev",
	"docs.rs",
	"learn.microsoft.com",
	"developer.android.com",
}

func credibility(host string) float64 {
	switch {
	case host == "":
		return 0
	case strings.HasSuffix(host, ".gov"), strings.HasSuffix(host, ".edu"):
		return 1
	case strings.HasSuffix(host, ".org"):
		return 0.5
	}
	for _, dh := range docHosts {
		if host == dh || strings.HasSuffix(host, "."+dh) {
			return 0.3
		}
	}
	return 0
}

// recency decays with age: 1.0 now, 0.5 after a year, 0.25 after three.
// Zero published or zero reference time contributes nothing; future dates
// clamp to fresh.
func recency(published, now time.Time) float64 {
	if published.IsZero() || now.IsZero() {
		return 0
	}
	age := now.Sub(published)
	if age < 0 {
		return 1
	}
	years := age.Hours() / (24 * 365)
	return 1 / (1 + years)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func entityTextSet(entities []analyze.Entity) map[string]struct{} {
	set := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		set[e.Text] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
