package retrieval

import (
	"context"
	"testing"
)

type fakeEmbeddingClient struct {
	vectors [][]float32
}

func (f fakeEmbeddingClient) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if len(f.vectors) == len(inputs) {
		return f.vectors, nil
	}
	vectors := make([][]float32, 0, len(inputs))
	for i := range inputs {
		vectors = append(vectors, []float32{float32(i)})
	}
	return vectors, nil
}

func TestEmbedderChunksDocument(t *testing.T) {
	embedder, err := NewEmbedder(fakeEmbeddingClient{}, WithTokenLimit(7), WithTokenOverlap(3))
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	content := "one two three four five six seven eight nine ten eleven twelve"
	chunks, err := embedder.EmbedDocument(context.Background(), "https://example.com", "web", "Title", content)
	if err != nil {
		t.Fatalf("embed document: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkIdx != i {
			t.Fatalf("expected chunk index %d, got %d", i, chunk.ChunkIdx)
		}
		if chunk.Text == "" {
			t.Fatalf("expected chunk text")
		}
		if chunk.SourceType != "web" {
			t.Fatalf("expected source type to carry through, got %q", chunk.SourceType)
		}
	}
}

func TestEmbedderQuery(t *testing.T) {
	client := fakeEmbeddingClient{vectors: [][]float32{{0.5}}}
	embedder, err := NewEmbedder(client)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	vector, err := embedder.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	if len(vector) != 1 || vector[0] != 0.5 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestEmbedDocumentEmptyContentError(t *testing.T) {
	embedder, err := NewEmbedder(fakeEmbeddingClient{})
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	if _, err := embedder.EmbedDocument(context.Background(), "https://example.com", "web", "Title", ""); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestEmbedDocumentAllChunksBelowMinTokens(t *testing.T) {
	embedder, err := NewEmbedder(fakeEmbeddingClient{})
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	_, err = embedder.EmbedDocument(context.Background(), "https://example.com", "web", "Title", "hi")
	if err != ErrNoChunks {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestEmbedDocumentDeduplicatesRepeatedChunks(t *testing.T) {
	embedder, err := NewEmbedder(fakeEmbeddingClient{}, WithTokenLimit(19), WithTokenOverlap(0))
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	para := "the quick brown fox jumps over the lazy dog near the riverbank today"
	content := para + "\n\n" + para
	chunks, err := embedder.EmbedDocument(context.Background(), "https://example.com", "web", "Title", content)
	if err != nil {
		t.Fatalf("embed document: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected duplicate paragraph to collapse to 1 chunk, got %d", len(chunks))
	}
}

func TestEstimateBPETokens(t *testing.T) {
	if got := estimateBPETokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
	if got := estimateBPETokens("one two three"); got < 3 {
		t.Fatalf("expected at least 3 tokens, got %d", got)
	}
}

func TestIsNavigationChunk(t *testing.T) {
	if !isNavigationChunk("go up to of in at on by an it is as we us do so") {
		t.Fatal("expected short-word-heavy chunk to be flagged as navigation")
	}
	if isNavigationChunk("substantial prose discussing the verification pipeline architecture") {
		t.Fatal("did not expect long-word prose to be flagged as navigation")
	}
}
