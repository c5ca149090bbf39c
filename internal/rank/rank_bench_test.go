package rank

import (
	"fmt"
	"testing"
)

func BenchmarkRank(b *testing.B) {
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	query := queryFeatures([]string{"alpha", "delta"})
	for _, n := range []int{10, 100, 500} {
		candidates := make([]Candidate, n)
		for i := range candidates {
			tokens := []string{vocab[i%len(vocab)], vocab[(i+3)%len(vocab)], fmt.Sprintf("t%d", i%50)}
			candidates[i] = cand(fmt.Sprintf("https://example.com/%d", i), i%7, 1+i%10, tokens)
		}
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = Rank(query, candidates, Options{})
			}
		})
	}
}
