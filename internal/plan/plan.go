// Package plan turns the user's question into the set of search queries
// worth issuing for it. The model-backed planner asks for rephrased variants
// under a JSON-only contract; Fallback derives them deterministically so a
// run never stalls on planning.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/llm"
	"github.com/hyperifyio/goanswer/internal/query"
)

// Plan is the list of search queries for one run, the user's question first
// followed by rephrased variants.
type Plan struct {
	Queries []string `json:"queries"`
}

// Planner yields the searches to run for a question.
type Planner interface {
	Plan(ctx context.Context, q query.Query) (Plan, error)
}

// DefaultMaxVariants bounds how many rephrasings follow the original
// question.
const DefaultMaxVariants = 4

const systemMessage = "You are a search planning assistant. Respond with strict JSON only, no narration. The JSON schema is {\"variants\": string[2..6]}. Each variant is an alternative web search query for the same question: rephrase it, swap in synonyms, or narrow it toward a likely source. Keep every variant under twelve words and never answer the question."

// LLMPlanner asks the chat model for search variants and enforces the
// JSON-only contract. Any call or parse failure comes back as an error so
// the caller can drop to Fallback; the original question is always the
// first query regardless of what the model returns.
type LLMPlanner struct {
	Client      llm.Client
	Cache       *cache.CompletionCache
	MaxVariants int
	Verbose     bool
}

type variantsPayload struct {
	Variants []string `json:"variants"`
}

func (p *LLMPlanner) Plan(ctx context.Context, q query.Query) (Plan, error) {
	if p.Client == nil || q.Model == "" {
		return Plan{}, errors.New("planner not configured")
	}

	user := buildUserPrompt(q)
	key := cache.Key(q.Model, systemMessage+"\n\n"+user)
	if p.Cache != nil {
		if raw, ok, _ := p.Cache.Get(ctx, key); ok {
			var payload variantsPayload
			if err := json.Unmarshal(raw, &payload); err == nil {
				if vs := p.sanitize(q.Text, payload.Variants); len(vs) > 0 {
					return withOriginal(q.Text, vs), nil
				}
			}
		}
	}
	if p.Verbose {
		// Prompt skeleton only; the question itself stays out of the logs.
		log.Debug().Str("stage", "plan").Str("model", q.Model).Int("user_len", len(user)).Msg("planner prompt")
	}
	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: q.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		N:           1,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("planner call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Plan{}, errors.New("no choices")
	}
	var payload variantsPayload
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Plan{}, fmt.Errorf("parse planner json: %w", err)
	}
	vs := p.sanitize(q.Text, payload.Variants)
	if len(vs) == 0 {
		return Plan{}, errors.New("no usable variants")
	}
	if p.Cache != nil {
		if b, err := json.Marshal(variantsPayload{Variants: vs}); err == nil {
			_ = p.Cache.Save(ctx, key, b)
		}
	}
	return withOriginal(q.Text, vs), nil
}

func (p *LLMPlanner) maxVariants() int {
	if p.MaxVariants > 0 {
		return p.MaxVariants
	}
	return DefaultMaxVariants
}

// sanitize trims each variant, strips trailing sentence punctuation, dedupes
// case-insensitively, drops echoes of the original question, and caps the
// list at maxVariants.
func (p *LLMPlanner) sanitize(original string, in []string) []string {
	seen := map[string]struct{}{normalizeKey(original): {}}
	out := make([]string, 0, len(in))
	for _, v := range in {
		s := strings.TrimSpace(v)
		s = strings.TrimSuffix(s, ".")
		s = strings.TrimSuffix(s, "?")
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := normalizeKey(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == p.maxVariants() {
			break
		}
	}
	return out
}

func normalizeKey(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimSuffix(s, "?")
	return strings.TrimSpace(s)
}

func withOriginal(original string, variants []string) Plan {
	queries := make([]string, 0, len(variants)+1)
	queries = append(queries, original)
	queries = append(queries, variants...)
	return Plan{Queries: queries}
}

func buildUserPrompt(q query.Query) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(q.Text)
	if q.Lang != "" {
		sb.WriteString("\nLanguage: ")
		sb.WriteString(q.Lang)
	}
	return sb.String()
}

// Fallback derives variants deterministically: the question's keyword core,
// then the core with a fixed set of facet words. Used when no model is
// configured or the model path errored.
type Fallback struct {
	MaxVariants int
}

var facetWords = []string{"explained", "overview", "examples", "definition"}

func (p *Fallback) Plan(_ context.Context, q query.Query) (Plan, error) {
	limit := p.MaxVariants
	if limit <= 0 {
		limit = DefaultMaxVariants
	}
	core := KeywordCore(q.Text)
	if core == "" {
		core = q.Text
	}
	suffix := ""
	if q.Lang != "" && q.Lang != "en" {
		suffix = " (" + q.Lang + ")"
	}

	seen := map[string]struct{}{normalizeKey(q.Text): {}}
	variants := make([]string, 0, limit)
	add := func(v string) {
		if len(variants) >= limit {
			return
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := normalizeKey(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, v)
	}
	add(core + suffix)
	for _, f := range facetWords {
		add(core + " " + f + suffix)
	}
	return withOriginal(q.Text, variants), nil
}

// questionLead holds the interrogative words, auxiliaries, and articles that
// open a question without adding anything to a keyword search.
var questionLead = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"what", "who", "whom", "whose", "when", "where", "why", "how",
		"which", "is", "are", "was", "were", "do", "does", "did", "can",
		"could", "should", "would", "will", "the", "a", "an",
	} {
		questionLead[w] = struct{}{}
	}
}

// KeywordCore strips the interrogative lead-in and trailing punctuation from
// a question, leaving the words worth searching for. Returns "" when fewer
// than two words remain, so callers keep the full text instead.
func KeywordCore(text string) string {
	words := strings.Fields(strings.TrimRight(strings.TrimSpace(text), "?.!"))
	i := 0
	for i < len(words) {
		if _, ok := questionLead[strings.ToLower(words[i])]; !ok {
			break
		}
		i++
	}
	rest := words[i:]
	if len(rest) < 2 {
		return ""
	}
	return strings.Join(rest, " ")
}
