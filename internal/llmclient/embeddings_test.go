package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbeddingProviderOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openAIEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Fatalf("expected 2 inputs, got %d", len(req.Input))
		}
		json.NewEncoder(w).Encode(openAIEmbeddingResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{
			{Embedding: []float32{0.1, 0.2}},
			{Embedding: []float32{0.3, 0.4}},
		}})
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Provider: "openai", Model: "text-embedding-test", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %+v", vecs)
	}
}

func TestEmbeddingProviderOllamaLoopsPerInput(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float32{0.5}})
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Provider: "ollama", Model: "nomic-embed-test", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vecs, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if calls != 3 {
		t.Fatalf("expected 3 requests, got %d", calls)
	}
}

func TestProbeEmbeddingDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIEmbeddingResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: make([]float32, 1536)}}})
	}))
	defer server.Close()

	client, err := NewEmbeddingClient(Config{Provider: "openai", Model: "text-embedding-test", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	dims, err := ProbeEmbeddingDimensions(context.Background(), client)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if dims != 1536 {
		t.Fatalf("expected 1536 dimensions, got %d", dims)
	}
}

func TestNewEmbeddingClientRequiresModel(t *testing.T) {
	if _, err := NewEmbeddingClient(Config{Provider: "openai"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}
