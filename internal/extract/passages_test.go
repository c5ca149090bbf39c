package extract

import (
	"strings"
	"testing"
)

func TestSplitPassages_MergesShortNeighbors(t *testing.T) {
	para := strings.Repeat("w", 100)
	text := strings.Join([]string{para, para, para, para, para}, "\n\n")

	got := SplitPassages("https://example.com/a", text, Options{
		MinPassageChars:    80,
		TargetPassageChars: 250,
		MaxPassageChars:    1600,
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 merged passages, got %d", len(got))
	}
	if !strings.Contains(got[0].Text, para) {
		t.Fatalf("first passage lost paragraph text")
	}
	if len(got[0].Text) < 250 {
		t.Fatalf("first passage below target: %d chars", len(got[0].Text))
	}
}

func TestSplitPassages_DropsShortPassages(t *testing.T) {
	got := SplitPassages("https://example.com/b", "too short to keep", Options{
		MinPassageChars:    80,
		TargetPassageChars: 100,
		MaxPassageChars:    1600,
	})
	if len(got) != 0 {
		t.Fatalf("expected no passages, got %d", len(got))
	}
}

func TestSplitPassages_TruncatesOnWordBoundary(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 20))

	got := SplitPassages("https://example.com/c", text, Options{
		MinPassageChars:    10,
		TargetPassageChars: 50,
		MaxPassageChars:    100,
	})
	if len(got) == 0 {
		t.Fatal("expected at least one passage")
	}
	p := got[0].Text
	if len(p) > 100 {
		t.Fatalf("passage exceeds max: %d chars", len(p))
	}
	if !strings.HasPrefix(text, p) {
		t.Fatalf("truncated passage is not a prefix of the input: %q", p)
	}
	if text[len(p)] != ' ' {
		t.Fatalf("truncation split a word: %q", p[len(p)-10:])
	}
}

func TestSplitPassages_IndexesStaySequential(t *testing.T) {
	long := strings.Repeat("x", 120)
	text := strings.Join([]string{long, long, "tiny"}, "\n\n")

	got := SplitPassages("https://example.com/d", text, Options{
		MinPassageChars:    80,
		TargetPassageChars: 10,
		MaxPassageChars:    1600,
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 passages after dropping the short one, got %d", len(got))
	}
	for i, p := range got {
		if p.Index != i {
			t.Fatalf("passage %d has Index %d", i, p.Index)
		}
		if p.Text != long {
			t.Fatalf("passage %d text = %q", i, p.Text)
		}
	}
}

func TestSplitPassages_EmptyText(t *testing.T) {
	if got := SplitPassages("https://example.com/e", "   \n\n  ", Options{}); len(got) != 0 {
		t.Fatalf("expected no passages, got %d", len(got))
	}
}
