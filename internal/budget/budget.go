// Package budget provides the token arithmetic shared by the context
// assembler and the synthesizer. All estimates use the same ~4 chars per
// token heuristic so that budget decisions made while packing evidence still
// hold when the prompt is sent.
package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative ~4 chars per token heuristic. The result uses
// ceiling division so a non-empty string never rounds down to zero.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// EstimatePromptTokens estimates the total tokens of a chat prompt composed
// of a system message, a user message, and zero or more evidence excerpts.
func EstimatePromptTokens(system, user string, excerpts []string) int {
	total := EstimateTokens(system) + EstimateTokens(user)
	for _, ex := range excerpts {
		total += EstimateTokens(ex)
	}
	return total
}

// ModelContextTokens returns the assumed maximum context window for a model
// name. Unknown models fall back to a conservative 8k so prompt sizing stays
// safe against backends we have never seen.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.HasSuffix(name, "32k"):
		return 32_768
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// RemainingContext computes the input budget left for evidence given a model,
// a reservation for output generation, and the estimated prompt tokens so
// far. The result is never negative.
func RemainingContext(modelName string, reservedForOutput, promptTokens int) int {
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := ModelContextTokens(modelName) - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HeadroomTokens returns the safety margin subtracted from a model's context
// before sizing prompts. Tokenizers and chat framing add overhead our chars/4
// estimate cannot see, so we keep the larger of 5% of the window or 512.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContextWithHeadroom is RemainingContext with the model's headroom
// folded into the output reservation.
func RemainingContextWithHeadroom(modelName string, reservedForOutput, promptTokens int) int {
	return RemainingContext(modelName, reservedForOutput+HeadroomTokens(modelName), promptTokens)
}

// knownModelMax holds context sizes for model identifiers we expect to meet
// behind OpenAI-compatible endpoints. Best effort, not exhaustive.
var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-3.5-turbo": 16_384,

	"claude-3-5-sonnet": 200_000,
	"claude-3-haiku":    200_000,

	"llama-3":   8_192,
	"llama-3.1": 128_000,

	// Local OpenAI-compatible backends tend to ship small windows.
	"gpt-oss-20b": 4_096,
}
