package template

import "strings"

// Type identifies an answer style profile.
type Type string

const (
	// Concise is the default: a few direct sentences.
	Concise Type = "concise"
	// Detailed allows a structured multi-paragraph answer.
	Detailed Type = "detailed"
	// Bullets renders the answer as a bullet list.
	Bullets Type = "bullets"
)

// Profile carries the prompts that shape one answer style. The grounding and
// citation rules live in the system prompt so every style inherits them.
type Profile struct {
	Type           Type
	Name           string
	Description    string
	SystemPrompt   string
	UserPromptHint string
}

// GetProfile maps a user-supplied style name onto a Profile. Unknown or
// empty names fall back to the concise profile.
func GetProfile(style string) Profile {
	switch Type(normalizeStyle(style)) {
	case Detailed:
		return detailedProfile()
	case Bullets:
		return bulletsProfile()
	default:
		return conciseProfile()
	}
}

// normalizeStyle converts free-form style input to a canonical Type value.
func normalizeStyle(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "concise", "short", "brief", "terse":
		return string(Concise)
	case "detailed", "thorough", "long", "full", "in-depth":
		return string(Detailed)
	case "bullets", "bullet", "list", "bullet points", "bulleted":
		return string(Bullets)
	}
	switch {
	case strings.Contains(v, "detail") || strings.Contains(v, "thorough"):
		return string(Detailed)
	case strings.Contains(v, "bullet") || strings.Contains(v, "list"):
		return string(Bullets)
	default:
		return string(Concise)
	}
}

const groundingRules = "Use ONLY the provided sources for facts. Cite every factual claim with a bracketed numeric index like [1] that maps to the numbered source list. Never invent sources, citations, or content. If the sources do not answer the question, say so plainly."

func conciseProfile() Profile {
	return Profile{
		Type:           Concise,
		Name:           "Concise Answer",
		Description:    "A few direct sentences that answer the question and nothing else",
		SystemPrompt:   "You are a careful research assistant. " + groundingRules + " Answer in a few direct sentences. No preamble, no restating the question.",
		UserPromptHint: "Keep the answer to a short paragraph.",
	}
}

func detailedProfile() Profile {
	return Profile{
		Type:           Detailed,
		Name:           "Detailed Answer",
		Description:    "A structured multi-paragraph answer covering the main aspects",
		SystemPrompt:   "You are a careful research assistant. " + groundingRules + " Give a structured answer: lead with the direct answer, then cover the relevant aspects in separate short paragraphs. Note disagreements between sources explicitly.",
		UserPromptHint: "Cover the main aspects in separate short paragraphs; lead with the direct answer.",
	}
}

func bulletsProfile() Profile {
	return Profile{
		Type:           Bullets,
		Name:           "Bulleted Answer",
		Description:    "The answer as a compact bullet list",
		SystemPrompt:   "You are a careful research assistant. " + groundingRules + " Format the answer as a compact bullet list, one fact per bullet, each bullet cited.",
		UserPromptHint: "One fact per bullet; each bullet carries its citation.",
	}
}
