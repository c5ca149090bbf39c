package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperifyio/goanswer/internal/synth"
)

// RenderAnswer formats a finished run for a terminal or a text file: the
// answer body, then a numbered source list resolving the [n] markers.
func RenderAnswer(res Result) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(res.Answer.Text))
	sb.WriteString("\n")
	if res.Answer.NoEvidence {
		sb.WriteString("\n(no retrieved sources back this answer)\n")
	}
	if len(res.Answer.Citations) > 0 {
		sb.WriteString("\nSources:\n")
		for _, id := range sortedCitationIDs(res.Answer.Citations) {
			c := res.Answer.Citations[id]
			if t := strings.TrimSpace(c.Title); t != "" {
				fmt.Fprintf(&sb, "[%d] %s — %s\n", id, t, c.URL)
			} else {
				fmt.Fprintf(&sb, "[%d] %s\n", id, c.URL)
			}
		}
	}
	return sb.String()
}

// RenderDryRun lists what a real run would search and fetch, without
// touching any page or the completion backend.
func RenderDryRun(res Result) string {
	var sb strings.Builder
	sb.WriteString("goanswer (dry run)\n\n")
	fmt.Fprintf(&sb, "Question: %s\nModel: %s\n\nPlanned queries:\n", res.Trace.Question, res.Trace.Model)
	for i, v := range res.Trace.Queries {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, v)
	}
	if len(res.Trace.Sources) > 0 {
		sb.WriteString("\nSelected sources:\n")
		for i, s := range res.Trace.Sources {
			fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, s.Title, s.URL)
		}
	}
	return sb.String()
}

func sortedCitationIDs(cits map[int]synth.Citation) []int {
	ids := make([]int, 0, len(cits))
	for id := range cits {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// shortExcerpt truncates text on a word boundary for archive storage.
func shortExcerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
