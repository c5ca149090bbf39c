// Package validate checks citation soundness of a synthesized answer:
// every [n] the text uses must resolve to an offered source, and offered
// sources the text never uses are worth knowing about. Findings are
// warnings; an unsound answer still ships, annotated.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperifyio/goanswer/internal/synth"
)

var citeRe = regexp.MustCompile(`\[(\d+)\]`)

// Report classifies every citation id involved in an answer.
type Report struct {
	// Used ids appear in the text and resolve to a source.
	Used []int
	// Dangling ids appear in the text but were never offered. A non-empty
	// list on a NoEvidence answer means the model fabricated citations.
	Dangling []int
	// Uncited ids were offered but never referenced by the text.
	Uncited []int
}

// Sound reports whether the text cites only ids that exist.
func (r Report) Sound() bool {
	return len(r.Dangling) == 0
}

// Summary renders the report for logs and the run trace.
func (r Report) Summary() string {
	return fmt.Sprintf("%d cited, %d dangling, %d uncited", len(r.Used), len(r.Dangling), len(r.Uncited))
}

// CheckAnswer scans the answer text for [n] references and compares them
// with the citation map.
func CheckAnswer(ans synth.Answer) Report {
	cited := CitedIDs(ans.Text)

	var rep Report
	seen := make(map[int]struct{}, len(cited))
	for _, id := range cited {
		seen[id] = struct{}{}
		if _, ok := ans.Citations[id]; ok {
			rep.Used = append(rep.Used, id)
		} else {
			rep.Dangling = append(rep.Dangling, id)
		}
	}
	for id := range ans.Citations {
		if _, ok := seen[id]; !ok {
			rep.Uncited = append(rep.Uncited, id)
		}
	}
	sort.Ints(rep.Uncited)
	return rep
}

// CitedIDs returns the distinct citation ids referenced by text, sorted.
func CitedIDs(text string) []int {
	matches := citeRe.FindAllStringSubmatch(text, -1)
	seen := make(map[int]struct{}, len(matches))
	var out []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// StripCitations removes [n] markers, collapsing the whitespace they leave
// behind. Useful when rendering the answer where markers have no meaning.
func StripCitations(text string) string {
	stripped := citeRe.ReplaceAllString(text, "")
	lines := strings.Split(stripped, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
