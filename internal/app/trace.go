package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/hyperifyio/goanswer/internal/assemble"
)

// Trace records what one run did: the planned queries, every source touched
// with its fetch outcome, and a digest of the exact content behind each
// citation id. Written as a JSON sidecar so an answer can be audited after
// the fact.
type Trace struct {
	RunID         string          `json:"run_id"`
	Question      string          `json:"question"`
	Model         string          `json:"model"`
	Queries       []string        `json:"queries"`
	Sources       []TraceSource   `json:"sources,omitempty"`
	Citations     []TraceCitation `json:"citations,omitempty"`
	TokenBudget   int             `json:"token_budget"`
	ContextTokens int             `json:"context_tokens"`
	NoEvidence    bool            `json:"no_evidence"`
	Validation    string          `json:"validation,omitempty"`
	Verification  string          `json:"verification,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	GeneratedAt   time.Time       `json:"generated_at"`
	ElapsedMS     int64           `json:"elapsed_ms"`
}

// TraceSource is the per-URL outcome of the gather stage.
type TraceSource struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"status"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	Domain      string `json:"domain"`
	Credibility string `json:"credibility"`
	Passages    int    `json:"passages"`
	Err         string `json:"error,omitempty"`
}

// TraceCitation pins a citation id to the passage text the model saw.
type TraceCitation struct {
	Ref          int    `json:"ref"`
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	PassageIndex int    `json:"passage_index"`
	SHA256       string `json:"sha256"`
	Chars        int    `json:"chars"`
	Tokens       int    `json:"tokens"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// traceCitations digests every context entry offered to the model, cited or
// not; the validation summary says which ids the answer actually used.
func traceCitations(block assemble.ContextBlock) []TraceCitation {
	out := make([]TraceCitation, 0, len(block.Entries))
	for _, e := range block.Entries {
		text := strings.TrimSpace(e.Passage.Text)
		out = append(out, TraceCitation{
			Ref:          e.ID,
			URL:          strings.TrimSpace(e.Passage.DocURL),
			Title:        strings.TrimSpace(e.Title),
			PassageIndex: e.Passage.Index,
			SHA256:       computeSHA256Hex(text),
			Chars:        len(text),
			Tokens:       e.Tokens,
		})
	}
	return out
}

// marshalTraceJSON encodes the machine-readable sidecar.
func marshalTraceJSON(tr Trace) ([]byte, error) {
	return json.MarshalIndent(tr, "", "  ")
}

// deriveTraceSidecarPath returns a sidecar JSON path next to the answer file.
func deriveTraceSidecarPath(outputPath string) string {
	return outputPath + ".trace.json"
}
