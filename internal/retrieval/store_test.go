package retrieval

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSearchLexical(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := New(db, nil)
	metadataBytes, _ := json.Marshal(map[string]any{"section": "intro"})

	rows := sqlmock.NewRows([]string{
		"id", "source_url", "source_title", "source_type", "chunk_text", "chunk_index", "metadata",
	}).AddRow("1", "https://example.com", "Example", "web", "the quick brown fox", 0, metadataBytes)

	mock.ExpectQuery("SELECT id, source_url").WithArgs("fox", nil, 6).WillReturnRows(rows)

	result, err := store.Search(context.Background(), Request{Question: "fox", TopK: 6, Mode: ModeLexical})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Score <= 0 {
		t.Fatalf("expected positive keyword overlap score, got %v", result.Candidates[0].Score)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchDegradesOnError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := New(db, nil)
	mock.ExpectQuery("SELECT id, source_url").WillReturnError(context.DeadlineExceeded)

	result, err := store.Search(context.Background(), Request{Question: "fox", TopK: 6, Mode: ModeLexical})
	if err != nil {
		t.Fatalf("search should degrade, not error: %v", err)
	}
	if result.Candidates != nil {
		t.Fatalf("expected no candidates on degraded search, got %v", result.Candidates)
	}
	if degraded, _ := result.Debug["degraded"].(bool); !degraded {
		t.Fatalf("expected degraded=true in debug, got %v", result.Debug)
	}
}

func TestResolveAutoModeFallsBackToLexicalWithoutEmbedder(t *testing.T) {
	store := New(nil, nil)
	if mode := store.resolveAutoMode("이것은 사실인가"); mode != ModeLexical {
		t.Fatalf("expected lexical without an embedder, got %v", mode)
	}
}

func TestKeywordOverlap(t *testing.T) {
	terms := uniqueLowerTerms("quick fox")
	score := keywordOverlap(terms, "the quick brown fox jumps")
	if score != 1.0 {
		t.Fatalf("expected full overlap, got %v", score)
	}

	partial := keywordOverlap(terms, "the quick brown dog jumps")
	if partial != 0.5 {
		t.Fatalf("expected half overlap, got %v", partial)
	}
}

func TestTitleBoost(t *testing.T) {
	if got := titleBoost("what is go", "Go"); got != titleBoostWeight {
		t.Fatalf("expected exact-token title boost, got %v", got)
	}
	if got := titleBoost("what is go", "Rust"); got != 0 {
		t.Fatalf("expected no boost for unrelated title, got %v", got)
	}
}

func TestJoinTruncate(t *testing.T) {
	c := Chunk{SourceURL: "u", ChunkIdx: 1, Text: "middle"}
	neighbors := []Chunk{
		{SourceURL: "u", ChunkIdx: 0, Text: "before"},
		{SourceURL: "u", ChunkIdx: 2, Text: "after"},
	}
	joined := joinTruncate(c, neighbors, 0)
	if joined != "before\nmiddle\nafter" {
		t.Fatalf("unexpected neighbor ordering: %q", joined)
	}

	truncated := joinTruncate(c, neighbors, 6)
	if truncated != "before" {
		t.Fatalf("expected truncation to 6 chars, got %q", truncated)
	}
}
