package analyze

import (
	"reflect"
	"testing"

	prose "github.com/jdkato/prose/v2"
)

func TestAnalyze_EmptyInput(t *testing.T) {
	var a Analyzer
	for _, input := range []string{"", "   ", "\n\t"} {
		f := a.Analyze(input)
		if !f.Empty() || f.TokenCount != 0 || len(f.Keyphrases) != 0 {
			t.Fatalf("expected empty features for %q, got %+v", input, f)
		}
	}
}

func TestAnalyze_NumericOnlyInput(t *testing.T) {
	var a Analyzer
	f := a.Analyze("12345 67.89 ---")
	if len(f.Tokens) != 0 {
		t.Fatalf("expected no tokens for numeric input, got %v", f.Tokens)
	}
	if len(f.Entities) != 0 || len(f.Keyphrases) != 0 {
		t.Fatalf("expected no entities or keyphrases, got %+v", f)
	}
}

func TestAnalyze_StemsAndLowercases(t *testing.T) {
	var a Analyzer
	f := a.Analyze("Cats running runs cat run")
	want := []string{"cat", "run"}
	if !reflect.DeepEqual(f.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", f.Tokens, want)
	}
	if f.TokenCount != 5 {
		t.Fatalf("token count = %d, want 5", f.TokenCount)
	}
}

func TestAnalyze_DropsStopwords(t *testing.T) {
	var a Analyzer
	f := a.Analyze("the cat and the hat")
	for _, tok := range f.Tokens {
		if tok == "the" || tok == "and" {
			t.Fatalf("stopword %q survived: %v", tok, f.Tokens)
		}
	}
	if len(f.Tokens) != 2 {
		t.Fatalf("tokens = %v, want cat and hat stems", f.Tokens)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	var a Analyzer
	const text = "The European Space Agency launched a new Earth observation satellite from French Guiana in March."
	first := a.Analyze(text)
	second := a.Analyze(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated analysis differs:\n%+v\n%+v", first, second)
	}
}

func TestEntitiesFrom_FiltersAndDedupes(t *testing.T) {
	got := entitiesFrom([]prose.Entity{
		{Text: "Paris", Label: "GPE"},
		{Text: "paris", Label: "GPE"},
		{Text: "Marie  Curie", Label: "PERSON"},
		{Text: "$40", Label: "MONEY"},
		{Text: "Acme Corp", Label: "ORG"},
	})
	want := []Entity{
		{Text: "acme corp", Label: "ORG"},
		{Text: "marie curie", Label: "PERSON"},
		{Text: "paris", Label: "GPE"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entities = %v, want %v", got, want)
	}
}

func TestKeyphrasesFrom_ChunksAdjectiveNounRuns(t *testing.T) {
	got := keyphrasesFrom([]prose.Token{
		{Tag: "JJ", Text: "quantum"},
		{Tag: "NN", Text: "computer"},
		{Tag: "VBZ", Text: "is"},
		{Tag: "DT", Text: "a"},
		{Tag: "NN", Text: "machine"},
		{Tag: ".", Text: "."},
		{Tag: "NNP", Text: "Error"},
		{Tag: "NN", Text: "correction"},
	})
	want := []string{"error correction", "quantum computer"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keyphrases = %v, want %v", got, want)
	}
}

func TestIsWord(t *testing.T) {
	cases := map[string]bool{
		"cat":          true,
		"state-of-art": true,
		"don't":        true,
		"42":           false,
		"c3po":         false,
		"--":           false,
		"":             false,
	}
	for in, want := range cases {
		if got := isWord(in); got != want {
			t.Fatalf("isWord(%q) = %v, want %v", in, got, want)
		}
	}
}
