// Package assemble packs ranked passages into the evidence block the
// synthesizer quotes from, greedily and without ever splitting a passage.
package assemble

import (
	"errors"

	"github.com/hyperifyio/goanswer/internal/budget"
	"github.com/hyperifyio/goanswer/internal/rank"
)

// ErrEmptyContext means no passages existed at all. Callers continue to the
// no-evidence synthesis path rather than aborting the run.
var ErrEmptyContext = errors.New("assemble: no passages to build context from")

// DefaultBudgetTokens bounds the context block when the caller gives none.
const DefaultBudgetTokens = 2048

// Entry is one cited passage. ID is the citation number the answer refers
// to, assigned sequentially from 1 in selection order.
type Entry struct {
	ID int
	rank.ScoredPassage
	Tokens int
}

// ContextBlock is the packed evidence. TokenCount never exceeds Budget.
type ContextBlock struct {
	Entries    []Entry
	TokenCount int
	Budget     int
}

// Empty reports whether no evidence made it into the block.
func (b ContextBlock) Empty() bool {
	return len(b.Entries) == 0
}

// Build selects passages in rank order until the token budget is spent. A
// passage that would not fit is skipped, never truncated, and the next
// candidate is tried. ErrEmptyContext is returned only when scored is empty;
// a non-empty input where nothing fits yields an empty block and no error.
func Build(scored []rank.ScoredPassage, budgetTokens int) (ContextBlock, error) {
	if budgetTokens <= 0 {
		budgetTokens = DefaultBudgetTokens
	}
	block := ContextBlock{Budget: budgetTokens}
	if len(scored) == 0 {
		return block, ErrEmptyContext
	}

	for _, sp := range scored {
		tokens := budget.EstimateTokens(sp.Passage.Text)
		if block.TokenCount+tokens > block.Budget {
			continue
		}
		block.Entries = append(block.Entries, Entry{
			ID:            len(block.Entries) + 1,
			ScoredPassage: sp,
			Tokens:        tokens,
		})
		block.TokenCount += tokens
	}
	return block, nil
}
