package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goanswer/internal/assemble"
	"github.com/hyperifyio/goanswer/internal/budget"
	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/llm"
	"github.com/hyperifyio/goanswer/internal/query"
	"github.com/hyperifyio/goanswer/internal/template"
)

// ErrUnavailable means the completion backend could not be reached after
// retry exhaustion. It is the only synthesis failure that aborts a run;
// everything upstream degrades instead.
var ErrUnavailable = errors.New("synth: completion backend unavailable")

// ErrNoAnswer means the backend responded but produced no usable text.
var ErrNoAnswer = errors.New("synth: model returned no answer")

// Citation resolves one bracketed index in the answer back to its source.
type Citation struct {
	URL          string
	Title        string
	PassageIndex int
}

// Answer is the synthesized result. Citations holds exactly the ids that
// were offered in the context block; which of them the text actually uses
// is the validator's business. NoEvidence marks answers produced without
// any retrieved sources.
type Answer struct {
	Text       string
	Citations  map[int]Citation
	NoEvidence bool
	Model      string
}

// Synthesizer turns a query plus its evidence block into a cited answer.
type Synthesizer struct {
	Client llm.Client
	Cache  *cache.CompletionCache

	// Temperature for the completion. Zero falls back to 0.1: the wire
	// format drops a zero field and the backend default of 1.0 is too
	// loose for cited answers.
	Temperature float32

	// MaxAnswerTokens caps the completion length. Zero means 1024. The
	// effective cap never exceeds what the model context leaves after
	// the prompt.
	MaxAnswerTokens int

	// MaxRetries bounds re-attempts after a failed completion call.
	// Zero means the default of 2.
	MaxRetries int

	// InitialBackoff seeds the exponential backoff. Zero means 200ms.
	InitialBackoff time.Duration
}

const (
	defaultTemperature     = 0.1
	defaultMaxAnswerTokens = 1024
)

// Synthesize prompts the model with the context block and returns the
// answer. An empty block switches to the no-evidence prompt so the model
// answers from prior knowledge or declines instead of inventing citations.
func (s *Synthesizer) Synthesize(ctx context.Context, q query.Query, block assemble.ContextBlock) (Answer, error) {
	if s.Client == nil || strings.TrimSpace(q.Model) == "" {
		return Answer{}, errors.New("synthesizer not configured")
	}

	profile := template.GetProfile(q.Style)
	system := profile.SystemPrompt
	user := buildUserMessage(q, block, profile)

	ans := Answer{
		Citations:  citationsFrom(block),
		NoEvidence: block.Empty(),
		Model:      q.Model,
	}

	// Cache by model+prompt so repeat runs are deterministic and free.
	key := cache.Key(q.Model, system+"\n\n"+user)
	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var cached struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &cached); err == nil && strings.TrimSpace(cached.Text) != "" {
				ans.Text = cached.Text
				return ans, nil
			}
		}
	}

	req := openai.ChatCompletionRequest{
		Model: q.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: s.temperature(),
		N:           1,
	}
	if max := s.answerTokenCap(q.Model, system, user); max > 0 {
		req.MaxTokens = max
	}

	resp, err := s.complete(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, ErrNoAnswer
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Answer{}, ErrNoAnswer
	}
	ans.Text = text

	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"text": text})
		_ = s.Cache.Save(ctx, key, payload)
	}
	return ans, nil
}

func (s *Synthesizer) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	initial := s.InitialBackoff
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxElapsedTime = 0 // attempt count is the bound

	var resp openai.ChatCompletionResponse
	op := func() error {
		var err error
		resp, err = s.Client.CreateChatCompletion(ctx, req)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx))
	return resp, err
}

func (s *Synthesizer) temperature() float32 {
	if s.Temperature > 0 {
		return s.Temperature
	}
	return defaultTemperature
}

// answerTokenCap bounds MaxTokens by both the configured answer cap and the
// space the model context leaves after the prompt.
func (s *Synthesizer) answerTokenCap(model, system, user string) int {
	limit := s.MaxAnswerTokens
	if limit <= 0 {
		limit = defaultMaxAnswerTokens
	}
	prompt := budget.EstimatePromptTokens(system, user, nil)
	if room := budget.RemainingContextWithHeadroom(model, 0, prompt); room < limit {
		limit = room
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}

func citationsFrom(block assemble.ContextBlock) map[int]Citation {
	out := make(map[int]Citation, len(block.Entries))
	for _, e := range block.Entries {
		out[e.ID] = Citation{
			URL:          e.Passage.DocURL,
			Title:        e.Title,
			PassageIndex: e.Passage.Index,
		}
	}
	return out
}

func buildUserMessage(q query.Query, block assemble.ContextBlock, profile template.Profile) string {
	var sb strings.Builder
	if block.Empty() {
		sb.WriteString("No external evidence could be retrieved for this question. ")
		sb.WriteString("Answer from prior knowledge only if you are confident, and state clearly that no sources back the answer. ")
		sb.WriteString("Otherwise say you cannot answer. Do not fabricate citations.")
	} else {
		sb.WriteString("Answer the question using ONLY the numbered sources below. ")
		sb.WriteString("Cite each factual claim with its source number like [1]. ")
		sb.WriteString("If the sources do not contain the answer, say so.")
	}
	if profile.UserPromptHint != "" {
		sb.WriteString("\nStyle: ")
		sb.WriteString(profile.UserPromptHint)
	}
	if q.Lang != "" {
		sb.WriteString("\nAnswer in language: ")
		sb.WriteString(q.Lang)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(q.Text)
	if !block.Empty() {
		sb.WriteString("\n\nSources:\n")
		for _, e := range block.Entries {
			sb.WriteString(fmt.Sprintf("[%d] %s — %s\n", e.ID, e.Title, e.Passage.DocURL))
			sb.WriteString(e.Passage.Text)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
