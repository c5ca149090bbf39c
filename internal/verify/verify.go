// Package verify runs a secondary fact-check pass over a synthesized answer.
// A model extracts the key claims and assesses their citation support; when no
// model is reachable a deterministic sentence scan stands in so the run always
// produces a verification result.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/llm"
	"github.com/hyperifyio/goanswer/internal/validate"
)

// Claim is one extracted factual claim with its support assessment.
type Claim struct {
	Text       string `json:"text"`
	Citations  []int  `json:"citations"`
	Confidence string `json:"confidence"` // "high", "medium", or "low"
	Supported  bool   `json:"supported"`
}

// Result contains the verification output.
type Result struct {
	Claims  []Claim `json:"claims"`
	Summary string  `json:"summary"`
}

// Verifier extracts claims from an answer, maps their citations, and rates
// support strength. The model path is best effort; any failure there falls
// back to the deterministic scan.
type Verifier struct {
	Client llm.Client
	Cache  *cache.CompletionCache
	// SystemPrompt, when non-empty, overrides the default verifier system message.
	SystemPrompt string
}

// Verify analyzes the answer text and returns a verification result. The
// model is asked once; a failed call or unparseable reply falls through to
// fallbackVerify rather than erroring.
func (v *Verifier) Verify(ctx context.Context, answer string, model string, languageHint string) (Result, error) {
	if v.Client != nil && strings.TrimSpace(model) != "" {
		sys := buildSystemMessage()
		if strings.TrimSpace(v.SystemPrompt) != "" {
			sys = v.SystemPrompt
		}
		user := buildUserMessage(answer, languageHint)
		key := cache.Key(model, sys+"\n\n"+user)
		if v.Cache != nil {
			if raw, ok, _ := v.Cache.Get(ctx, key); ok {
				var res Result
				if err := json.Unmarshal(raw, &res); err == nil && len(res.Claims) > 0 {
					return normalizeResult(res), nil
				}
			}
		}
		req := openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sys},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.1,
			N:           1,
		}
		resp, err := v.Client.CreateChatCompletion(ctx, req)
		if err == nil && len(resp.Choices) > 0 {
			raw := strings.TrimSpace(resp.Choices[0].Message.Content)
			var res Result
			if err := json.Unmarshal([]byte(raw), &res); err == nil && len(res.Claims) > 0 {
				res = normalizeResult(res)
				if v.Cache != nil {
					if b, err := json.Marshal(res); err == nil {
						_ = v.Cache.Save(ctx, key, b)
					}
				}
				return res, nil
			}
		}
		// fall through on any model or parse failure
	}
	return fallbackVerify(answer), nil
}

func buildSystemMessage() string {
	return "You are a fact-check verifier. Respond with strict JSON only: {\"claims\":[{\"text\":string,\"citations\":int[],\"confidence\":\"high|medium|low\",\"supported\":bool}],\"summary\":string}. Extract 3-8 key factual claims. Map citations by numeric indices like [3]. If a claim lacks sufficient citation support, mark supported=false and set confidence=low."
}

func buildUserMessage(answer string, languageHint string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following answer. Extract its key factual claims, map the minimal supporting source indices, and assess confidence.\n")
	if strings.TrimSpace(languageHint) != "" {
		sb.WriteString("Language hint: ")
		sb.WriteString(languageHint)
		sb.WriteString("\n")
	}
	sb.WriteString("Answer:\n\n")
	sb.WriteString(answer)
	return sb.String()
}

const maxFallbackClaims = 8

// fallbackVerify implements deterministic claim extraction:
// sentences with enough words become claims, inline [n] markers become their
// citations, and confidence follows the count: >=2 high, 1 medium, 0 low and
// unsupported.
func fallbackVerify(answer string) Result {
	sentences := splitIntoSentences(answer)
	claims := make([]Claim, 0, maxFallbackClaims)
	for _, s := range sentences {
		text := strings.TrimSpace(s)
		if !looksLikeSentence(text) {
			continue
		}
		cites := validate.CitedIDs(text)
		confidence := "low"
		supported := false
		switch {
		case len(cites) >= 2:
			confidence = "high"
			supported = true
		case len(cites) == 1:
			confidence = "medium"
			supported = true
		}
		claims = append(claims, Claim{Text: text, Citations: cites, Confidence: confidence, Supported: supported})
		if len(claims) >= maxFallbackClaims {
			break
		}
	}
	// cited claims first
	sort.SliceStable(claims, func(i, j int) bool {
		return len(claims[i].Citations) > len(claims[j].Citations)
	})
	return Result{Claims: claims, Summary: summarizeClaims(claims)}
}

func splitIntoSentences(s string) []string {
	// Naive split on sentence punctuation and newlines. Deterministic and
	// cheap; the sort afterwards prioritizes cited lines.
	sep := func(r rune) bool {
		return r == '.' || r == '\n' || r == '?' || r == '!'
	}
	raw := strings.FieldsFunc(s, sep)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func looksLikeSentence(s string) bool {
	// Require some letters and 5+ words to skip headings and list labels.
	// Answers run shorter than long-form prose, so the bar stays low enough
	// to keep lines like "Paris is the capital of France [1]".
	letters := 0
	words := 0
	inWord := false
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			letters++
		}
		if r == ' ' || r == '\t' {
			if inWord {
				words++
				inWord = false
			}
		} else {
			inWord = true
		}
	}
	if inWord {
		words++
	}
	return letters >= 10 && words >= 5
}

func summarizeClaims(claims []Claim) string {
	total := len(claims)
	if total == 0 {
		return "No extractable claims found."
	}
	supported := 0
	low := 0
	for _, c := range claims {
		if c.Supported {
			supported++
		}
		if c.Confidence == "low" {
			low++
		}
	}
	return fmt.Sprintf("%d claims extracted; %d supported by citations; %d low-confidence.", total, supported, low)
}

func normalizeResult(r Result) Result {
	for i := range r.Claims {
		r.Claims[i].Text = strings.TrimSpace(r.Claims[i].Text)
		sort.Ints(r.Claims[i].Citations)
	}
	return r
}
