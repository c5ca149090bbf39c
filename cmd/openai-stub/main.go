// Command openai-stub is a tiny OpenAI-compatible server for offline runs
// and demos. It recognizes the pipeline's three prompts (planning, synthesis,
// verification) by their system messages and answers each deterministically.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys, user := "", ""
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				sys = m.Content
			case "user":
				user = m.Content
			}
		}
		var content string
		switch {
		case strings.Contains(sys, "search planning assistant"):
			content = planReply(user)
		case strings.Contains(sys, "careful research assistant"):
			content = answerReply(user)
		case strings.Contains(sys, "fact-check verifier"):
			b, _ := json.Marshal(map[string]any{
				"claims": []map[string]any{
					{"text": "Claim backed by [1].", "citations": []int{1}, "confidence": "medium", "supported": true},
				},
				"summary": "1 claim supported.",
			})
			content = string(b)
		default:
			http.Error(w, "unexpected system prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// planReply rephrases the question into two variants. The planner drops
// variants that merely echo the question, so both get a distinct suffix.
func planReply(user string) string {
	core := "the question"
	for _, line := range strings.Split(user, "\n") {
		if q, ok := strings.CutPrefix(line, "Question: "); ok {
			core = strings.TrimRight(strings.TrimSpace(q), "?.!")
			break
		}
	}
	b, _ := json.Marshal(map[string]any{
		"variants": []string{core + " overview", core + " reference"},
	})
	return string(b)
}

// answerReply cites whichever source ids the prompt offered, or states the
// no-evidence case when the prompt carried no source list.
func answerReply(user string) string {
	ids := offeredIDs(user)
	if len(ids) == 0 {
		return "No sources could be retrieved for this question, so this answer cites nothing and should be read as unverified."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "The offered sources address the question directly [%d].", ids[0])
	if len(ids) > 1 {
		fmt.Fprintf(&sb, " A second source agrees [%d].", ids[1])
	}
	return sb.String()
}

// offeredIDs scans the user message for "[n] Title — URL" source headers.
func offeredIDs(user string) []int {
	var ids []int
	for _, line := range strings.Split(user, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") || !strings.Contains(line, " — ") {
			continue
		}
		end := strings.IndexByte(line, ']')
		if end <= 1 {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(line[1:end], "%d", &n); err == nil && n > 0 {
			ids = append(ids, n)
		}
	}
	return ids
}
