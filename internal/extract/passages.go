package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitPassages segments normalized text on paragraph boundaries. Short
// neighbors are merged until a passage reaches TargetPassageChars, anything
// under MinPassageChars is dropped, and anything over MaxPassageChars is
// truncated on a word boundary. Segmentation is deterministic for a given
// text and Options.
func SplitPassages(docURL, text string, opts Options) []Passage {
	opts = opts.withDefaults()

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var merged []string
	var cur strings.Builder
	for _, p := range paragraphs {
		switch {
		case cur.Len() == 0:
			cur.WriteString(p)
		case cur.Len() < opts.TargetPassageChars:
			cur.WriteString("\n\n")
			cur.WriteString(p)
		default:
			merged = append(merged, cur.String())
			cur.Reset()
			cur.WriteString(p)
		}
	}
	if cur.Len() > 0 {
		merged = append(merged, cur.String())
	}

	out := make([]Passage, 0, len(merged))
	for _, m := range merged {
		if len(m) < opts.MinPassageChars {
			continue
		}
		if len(m) > opts.MaxPassageChars {
			m = truncateAtWord(m, opts.MaxPassageChars)
		}
		out = append(out, Passage{DocURL: docURL, Index: len(out), Text: m})
	}
	return out
}

func splitParagraphs(text string) []string {
	blocks := strings.Split(text, "\n\n")
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, block)
	}
	return out
}

// truncateAtWord cuts s to at most max bytes, preferring the last space
// before the limit and never splitting a rune.
func truncateAtWord(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	lastSpace := -1
	for i, r := range s {
		if i > max {
			break
		}
		if unicode.IsSpace(r) {
			lastSpace = i
		}
	}
	if lastSpace > 0 {
		return strings.TrimSpace(s[:lastSpace])
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
