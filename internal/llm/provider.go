package llm

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal surface the pipeline needs from a chat model. It
// mirrors the CreateChatCompletion method so any OpenAI-compatible backend,
// local or hosted, can stand in.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is an optional capability for listing available models. Callers
// detect it with a type assertion; backends without it are fine.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Config holds what is needed to reach an OpenAI-compatible backend. BaseURL
// empty means the official endpoint. LegacyCompletions routes requests
// through /v1/completions for backends that never implemented chat.
type Config struct {
	BaseURL           string
	APIKey            string
	LegacyCompletions bool
	HTTPClient        *http.Client
}

// New builds a Client from Config.
func New(cfg Config) Client {
	tc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		tc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		tc.HTTPClient = cfg.HTTPClient
	}
	inner := openai.NewClientWithConfig(tc)
	if cfg.LegacyCompletions {
		return &LegacyCompletionsAdapter{Inner: inner}
	}
	return &OpenAIProvider{Inner: inner}
}

// OpenAIProvider adapts *openai.Client to the Client and ModelLister
// interfaces.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

// LegacyCompletionsAdapter satisfies Client by flattening chat messages into
// a single prompt and calling the legacy completions endpoint. Some local
// serving stacks only expose that route.
type LegacyCompletionsAdapter struct {
	Inner *openai.Client
}

func (a *LegacyCompletionsAdapter) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := a.Inner.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       request.Model,
		Prompt:      FlattenMessages(request.Messages),
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
		TopP:        request.TopP,
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	out := openai.ChatCompletionResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, openai.ChatCompletionChoice{
			Index:        ch.Index,
			FinishReason: openai.FinishReason(ch.FinishReason),
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: ch.Text,
			},
		})
	}
	return out, nil
}

func (a *LegacyCompletionsAdapter) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return a.Inner.ListModels(ctx)
}

// FlattenMessages joins chat messages into one prompt, system text first,
// separated by blank lines.
func FlattenMessages(msgs []openai.ChatCompletionMessage) string {
	var parts []string
	for _, m := range msgs {
		if s := strings.TrimSpace(m.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
