package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBrave_Search_SendsTokenAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "secret" {
			t.Errorf("token header = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "quic handshake" {
			t.Errorf("q param = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"RFC 9000","url":"https://rfc.example/9000","description":"transport"},
			{"title":"","url":"https://skip.example","description":"no title"}
		]}}`))
	}))
	defer srv.Close()

	b := &Brave{BaseURL: srv.URL, APIKey: "secret", HTTPClient: srv.Client()}
	got, err := b.Search(context.Background(), "quic handshake", 5)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Title != "RFC 9000" || got[0].Snippet != "transport" || got[0].Source != "brave" {
		t.Fatalf("unexpected result: %+v", got[0])
	}
}

func TestBrave_Search_RequiresKey(t *testing.T) {
	b := &Brave{}
	if _, err := b.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error without api key")
	}
}
