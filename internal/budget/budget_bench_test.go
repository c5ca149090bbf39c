package budget

import (
	"fmt"
	"testing"
)

func BenchmarkEstimateTokens(b *testing.B) {
	for _, n := range []int{64, 1024, 16384, 65536} {
		b.Run(fmt.Sprintf("chars=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = EstimateTokensFromChars(n)
			}
		})
	}
}

func BenchmarkRemainingContextWithHeadroom(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = RemainingContextWithHeadroom("gpt-4o", 1500, 20_000)
	}
}
