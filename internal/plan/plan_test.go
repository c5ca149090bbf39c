package plan

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/query"
)

type fakeClient struct {
	calls int
	reply string
	err   error
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
		}},
	}, nil
}

func testQuery(text string) query.Query {
	return query.New(text, query.Params{Model: "test-model"})
}

func TestFallback_OriginalFirstThenFacets(t *testing.T) {
	var p Fallback
	got, err := p.Plan(context.Background(), testQuery("What is the capital of France?"))
	if err != nil {
		t.Fatalf("fallback plan: %v", err)
	}
	if got.Queries[0] != "What is the capital of France?" {
		t.Fatalf("first query = %q, want the original question", got.Queries[0])
	}
	if len(got.Queries) != 1+DefaultMaxVariants {
		t.Fatalf("queries = %d, want %d", len(got.Queries), 1+DefaultMaxVariants)
	}
	if got.Queries[1] != "capital of France" {
		t.Fatalf("second query = %q, want the keyword core", got.Queries[1])
	}
	for _, q := range got.Queries[2:] {
		if !strings.HasPrefix(q, "capital of France ") {
			t.Fatalf("facet query %q does not build on the core", q)
		}
	}
}

func TestFallback_Deterministic(t *testing.T) {
	var p Fallback
	q := testQuery("How does HTTP caching work?")
	a, _ := p.Plan(context.Background(), q)
	b, _ := p.Plan(context.Background(), q)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plans diverged: %v vs %v", a, b)
	}
}

func TestFallback_LanguageSuffixOnVariantsOnly(t *testing.T) {
	var p Fallback
	q := query.New("¿Cuál es la capital de Francia?", query.Params{Lang: "es"})
	got, err := p.Plan(context.Background(), q)
	if err != nil {
		t.Fatalf("fallback plan: %v", err)
	}
	if strings.Contains(got.Queries[0], "(es)") {
		t.Fatalf("original question must stay untouched, got %q", got.Queries[0])
	}
	for _, v := range got.Queries[1:] {
		if !strings.Contains(v, "(es)") {
			t.Fatalf("variant %q missing language suffix", v)
		}
	}
}

func TestFallback_ShortQuestionKeepsFullText(t *testing.T) {
	// "What is Go?" strips down to one word, too little to search alone.
	var p Fallback
	got, err := p.Plan(context.Background(), testQuery("What is Go?"))
	if err != nil {
		t.Fatalf("fallback plan: %v", err)
	}
	if got.Queries[1] != "What is Go? explained" {
		t.Fatalf("second query = %q, want the full question plus a facet", got.Queries[1])
	}
}

func TestKeywordCore(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"What is the capital of France?", "capital of France"},
		{"How does garbage collection work in Go", "garbage collection work in Go"},
		{"Where were the first Olympic games held?", "first Olympic games held"},
		{"quantum error correction", "quantum error correction"},
		{"What is Go?", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := KeywordCore(tc.in); got != tc.want {
			t.Fatalf("KeywordCore(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLLMPlanner_ParsesVariantsAndPrependsOriginal(t *testing.T) {
	client := &fakeClient{reply: `{"variants":["capital city of France","France capital name","which city governs France?"]}`}
	p := &LLMPlanner{Client: client}
	got, err := p.Plan(context.Background(), testQuery("What is the capital of France?"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []string{
		"What is the capital of France?",
		"capital city of France",
		"France capital name",
		"which city governs France",
	}
	if !reflect.DeepEqual(got.Queries, want) {
		t.Fatalf("queries = %v, want %v", got.Queries, want)
	}
}

func TestLLMPlanner_DropsEchoesAndDuplicates(t *testing.T) {
	client := &fakeClient{reply: `{"variants":["What is the capital of France?","France capital","france capital.","  "]}`}
	p := &LLMPlanner{Client: client}
	got, err := p.Plan(context.Background(), testQuery("What is the capital of France?"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(got.Queries) != 2 {
		t.Fatalf("queries = %v, want original plus one variant", got.Queries)
	}
	if got.Queries[1] != "France capital" {
		t.Fatalf("variant = %q", got.Queries[1])
	}
}

func TestLLMPlanner_CapsVariants(t *testing.T) {
	client := &fakeClient{reply: `{"variants":["a b","c d","e f","g h","i j","k l"]}`}
	p := &LLMPlanner{Client: client, MaxVariants: 2}
	got, err := p.Plan(context.Background(), testQuery("What is the capital of France?"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(got.Queries) != 3 {
		t.Fatalf("queries = %v, want original plus 2 variants", got.Queries)
	}
}

func TestLLMPlanner_NonJSONIsAnError(t *testing.T) {
	client := &fakeClient{reply: "Here are some search ideas:\n1. France capital"}
	p := &LLMPlanner{Client: client}
	if _, err := p.Plan(context.Background(), testQuery("What is the capital of France?")); err == nil {
		t.Fatal("expected parse error so the caller can fall back")
	}
}

func TestLLMPlanner_CallErrorPropagates(t *testing.T) {
	client := &fakeClient{err: errors.New("backend down")}
	p := &LLMPlanner{Client: client}
	if _, err := p.Plan(context.Background(), testQuery("anything at all?")); err == nil {
		t.Fatal("expected error from failed call")
	}
}

func TestLLMPlanner_Unconfigured(t *testing.T) {
	var p LLMPlanner
	if _, err := p.Plan(context.Background(), testQuery("anything at all?")); err == nil {
		t.Fatal("expected error without a client")
	}
}

func TestLLMPlanner_CacheSkipsSecondCall(t *testing.T) {
	client := &fakeClient{reply: `{"variants":["France capital","capital city France"]}`}
	p := &LLMPlanner{Client: client, Cache: &cache.CompletionCache{Dir: t.TempDir()}}
	q := testQuery("What is the capital of France?")

	first, err := p.Plan(context.Background(), q)
	if err != nil {
		t.Fatalf("first plan: %v", err)
	}
	second, err := p.Plan(context.Background(), q)
	if err != nil {
		t.Fatalf("second plan: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want 1", client.calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached plan diverged: %v vs %v", first, second)
	}
}
