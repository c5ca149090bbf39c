// Command debugsearch runs one query against a configured search provider
// and prints the raw hits. Handy for checking a SearxNG instance or a
// results fixture before a full run.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hyperifyio/goanswer/internal/search"
)

func main() {
	q := "What is the capital of France?"
	if len(os.Args) > 1 {
		q = strings.Join(os.Args[1:], " ")
	}

	prov := provider()
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	res, err := prov.Search(ctx, q, 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", prov.Name(), err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d hits for %q\n", prov.Name(), len(res), q)
	for i, r := range res {
		fmt.Printf("%d. %s — %s\n", i+1, r.Title, r.URL)
	}
}

// provider mirrors the app's precedence: results file, then SearxNG, then
// Brave, then a local SearxNG default.
func provider() search.Provider {
	client := &http.Client{Timeout: 20 * time.Second}
	if path := os.Getenv("SEARCH_FILE"); path != "" {
		return &search.FileProvider{Path: path}
	}
	if base := os.Getenv("SEARX_URL"); base != "" {
		return &search.SearxNG{
			BaseURL:    base,
			APIKey:     os.Getenv("SEARX_KEY"),
			HTTPClient: client,
			UserAgent:  "debugsearch/1.0",
		}
	}
	if key := os.Getenv("BRAVE_KEY"); key != "" {
		return &search.Brave{APIKey: key, HTTPClient: client}
	}
	return &search.SearxNG{BaseURL: "http://localhost:8888", HTTPClient: client, UserAgent: "debugsearch/1.0"}
}
