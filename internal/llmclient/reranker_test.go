package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRerankClientGenericProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req genericRerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "is the sky blue" || len(req.Documents) != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(genericRerankResponse{Results: []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}{
			{Index: 1, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.2},
		}})
	}))
	defer server.Close()

	client, err := NewRerankClient(RerankConfig{Provider: "generic", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	results, err := client.Rerank(context.Background(), "is the sky blue", []string{"doc a", "doc b"})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(results) != 2 || results[0].Index != 1 || results[0].RelevanceScore != 0.9 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestRerankClientCohereDefaultsURL(t *testing.T) {
	client, err := NewRerankClient(RerankConfig{Provider: "cohere"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	p, ok := client.(*rerankProvider)
	if !ok || p.apiURL != "https://api.cohere.com/v2" {
		t.Fatalf("unexpected provider: %+v", client)
	}
}

func TestRerankClientGenericRequiresURL(t *testing.T) {
	if _, err := NewRerankClient(RerankConfig{Provider: "generic"}); err == nil {
		t.Fatal("expected error for missing url on generic provider")
	}
}

func TestRerankClientEmptyDocumentsShortCircuits(t *testing.T) {
	client, err := NewRerankClient(RerankConfig{Provider: "jina"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	results, err := client.Rerank(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}
