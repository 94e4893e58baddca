package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingClient embeds query/document text. Satisfied by
// internal/llmclient's embedding client; kept as a narrow local
// interface so retrieval does not import llmclient.
type EmbeddingClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Store is the C1 retrieval backend, backed by Postgres + pgvector.
type Store struct {
	db       *sql.DB
	embedder EmbeddingClient
}

// New wraps a *sql.DB and an embedding client.
func New(db *sql.DB, embedder EmbeddingClient) *Store {
	return &Store{db: db, embedder: embedder}
}

const (
	hybridVectorWeight = 0.7
	hybridTextWeight   = 0.3

	ftsBoostWeight   = 0.3
	titleBoostWeight = 0.2
)

// Search implements the C1 contract (§4.1): search(question, top_k,
// page_ids?, window, max_chars, mode) -> {candidates, hits,
// prompt_context, debug}. Retrieval errors degrade to an empty result
// with a diagnostics entry; they never propagate (§4.1 Failure).
func (s *Store) Search(ctx context.Context, req Request) (Result, error) {
	if req.TopK <= 0 {
		req.TopK = 6
	}
	mode := req.Mode
	if mode == "" || mode == ModeAuto {
		mode = s.resolveAutoMode(req.Question)
	}

	candidates, debug, err := s.queryChunks(ctx, req, mode)
	if err != nil {
		retrievalQueriesTotal.WithLabelValues(string(mode), "error").Inc()
		return Result{
			Candidates: nil,
			Hits:       nil,
			Debug:      map[string]any{"degraded": true, "error": err.Error()},
		}, nil
	}
	retrievalQueriesTotal.WithLabelValues(string(mode), "success").Inc()

	if req.EmbedMissing {
		if embedErr := s.fillMissingEmbeddings(ctx, candidates); embedErr != nil {
			debug["embed_missing_error"] = embedErr.Error()
		}
	}

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		neighbors, nerr := s.neighbors(ctx, c, req.Window)
		if nerr != nil {
			neighbors = nil
		}
		hits = append(hits, Hit{
			Chunk:     c,
			Neighbors: neighbors,
			Text:      joinTruncate(c, neighbors, req.MaxChars),
		})
	}

	return Result{
		Candidates:    candidates,
		Hits:          hits,
		PromptContext: buildPromptContext(hits),
		Debug:         debug,
	}, nil
}

// resolveAutoMode implements the §4.1 mode=auto heuristic: choose
// vector when the query is descriptive (>= 3 tokens and contains
// verbs/common nouns) and an embedder is configured; otherwise lexical.
func (s *Store) resolveAutoMode(question string) Mode {
	tokens := strings.Fields(question)
	if s.embedder != nil && len(tokens) >= 3 && looksDescriptive(tokens) {
		return ModeVector
	}
	return ModeLexical
}

var commonVerbSuffixes = regexp.MustCompile(`(다|했다|였다|된다|있다|없다|한다)$`)

// looksDescriptive is a light heuristic for "contains verbs/common
// nouns": any token long enough to carry content, or ending in a
// common Korean verb/predicate suffix (the corpus's default language
// per SPEC_FULL.md §6 is "ko").
func looksDescriptive(tokens []string) bool {
	for _, t := range tokens {
		runes := []rune(t)
		if len(runes) >= 2 && (commonVerbSuffixes.MatchString(t) || unicode.IsLetter(runes[0])) {
			return true
		}
	}
	return false
}

func (s *Store) queryChunks(ctx context.Context, req Request, mode Mode) ([]Chunk, map[string]any, error) {
	debug := map[string]any{"mode": string(mode)}

	switch mode {
	case ModeVector:
		if s.embedder == nil {
			return nil, debug, errors.New("vector mode requires an embedder")
		}
		vecs, err := s.embedder.Embed(ctx, []string{req.Question})
		if err != nil || len(vecs) == 0 {
			return nil, debug, fmt.Errorf("embed query: %w", err)
		}
		return s.searchVector(ctx, vecs[0], req)
	case ModeFTS:
		return s.searchFTS(ctx, req)
	case ModeLexical:
		return s.searchLexical(ctx, req)
	default:
		return nil, debug, fmt.Errorf("unknown search mode %q", mode)
	}
}

// searchVector ranks by cosine distance with fts/title boosts folded
// in, per the §4.1 hybrid final-score formula:
//
//	vec = 1/(1+dist); fts_boost = 0.3*min(1, 2*fts_rank);
//	title_boost = 0.2 if anchor token matches page title exactly;
//	final = min(1, vec + fts_boost + title_boost).
func (s *Store) searchVector(ctx context.Context, embedding []float32, req Request) ([]Chunk, map[string]any, error) {
	query := `
		SELECT id, source_url, source_title, source_type, chunk_text, chunk_index, metadata,
			embedding <=> $1 AS distance,
			COALESCE(ts_rank(tsv, plainto_tsquery('simple', $2)), 0) AS fts_rank
		FROM truthcheck.evidence_chunks
		WHERE ($3::text[] IS NULL OR source_url = ANY($3))
		ORDER BY distance ASC, chunk_index ASC
		LIMIT $4
	`
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(embedding), req.Question, pageIDsArg(req.PageIDs), req.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var distance, ftsRank float64
		var metadataBytes []byte
		if scanErr := rows.Scan(&c.ID, &c.SourceURL, &c.SourceTitle, &c.SourceType, &c.Text, &c.ChunkIdx, &metadataBytes, &distance, &ftsRank); scanErr != nil {
			return nil, nil, fmt.Errorf("scan vector row: %w", scanErr)
		}
		c.Metadata = decodeMetadata(metadataBytes)
		c.Vec = 1.0 / (1.0 + distance)
		c.FTS = ftsBoostWeight * min1(2*ftsRank)
		c.Title = titleBoost(req.Question, c.SourceTitle)
		c.Score = min1(c.Vec + c.FTS + c.Title)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate vector rows: %w", err)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks, map[string]any{"mode": "vector", "count": len(chunks)}, nil
}

func (s *Store) searchFTS(ctx context.Context, req Request) ([]Chunk, map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, source_title, source_type, chunk_text, chunk_index, metadata,
			ts_rank(tsv, plainto_tsquery('simple', $1)) AS rank
		FROM truthcheck.evidence_chunks
		WHERE tsv @@ plainto_tsquery('simple', $1)
		  AND ($2::text[] IS NULL OR source_url = ANY($2))
		ORDER BY rank DESC, chunk_index ASC
		LIMIT $3
	`, req.Question, pageIDsArg(req.PageIDs), req.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var rank float64
		var metadataBytes []byte
		if scanErr := rows.Scan(&c.ID, &c.SourceURL, &c.SourceTitle, &c.SourceType, &c.Text, &c.ChunkIdx, &metadataBytes, &rank); scanErr != nil {
			return nil, nil, fmt.Errorf("scan fts row: %w", scanErr)
		}
		c.Metadata = decodeMetadata(metadataBytes)
		c.FTS = rank
		c.Score = min1(rank)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate fts rows: %w", err)
	}
	return chunks, map[string]any{"mode": "fts", "count": len(chunks)}, nil
}

// searchLexical is a plain ILIKE token-overlap fallback used when no
// embedder is configured, mirroring the keyword-overlap helper the
// teacher uses for RRF fallback in reranker.go.
func (s *Store) searchLexical(ctx context.Context, req Request) ([]Chunk, map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, source_title, source_type, chunk_text, chunk_index, metadata
		FROM truthcheck.evidence_chunks
		WHERE chunk_text ILIKE '%' || $1 || '%'
		  AND ($2::text[] IS NULL OR source_url = ANY($2))
		ORDER BY chunk_index ASC
		LIMIT $3
	`, req.Question, pageIDsArg(req.PageIDs), req.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	terms := uniqueLowerTerms(req.Question)
	for rows.Next() {
		var c Chunk
		var metadataBytes []byte
		if scanErr := rows.Scan(&c.ID, &c.SourceURL, &c.SourceTitle, &c.SourceType, &c.Text, &c.ChunkIdx, &metadataBytes); scanErr != nil {
			return nil, nil, fmt.Errorf("scan lexical row: %w", scanErr)
		}
		c.Metadata = decodeMetadata(metadataBytes)
		c.Score = keywordOverlap(terms, c.Text)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate lexical rows: %w", err)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks, map[string]any{"mode": "lexical", "count": len(chunks)}, nil
}

// neighbors fetches the ±window chunks from the same source, ordered
// by chunk_index, for neighbor-window expansion (§4.1).
func (s *Store) neighbors(ctx context.Context, c Chunk, window int) ([]Chunk, error) {
	if window <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, source_title, source_type, chunk_text, chunk_index, metadata
		FROM truthcheck.evidence_chunks
		WHERE source_url = $1
		  AND chunk_index BETWEEN $2 AND $3
		  AND chunk_index != $4
		ORDER BY chunk_index ASC
	`, c.SourceURL, c.ChunkIdx-window, c.ChunkIdx+window, c.ChunkIdx)
	if err != nil {
		return nil, fmt.Errorf("neighbor query: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var n Chunk
		var metadataBytes []byte
		if scanErr := rows.Scan(&n.ID, &n.SourceURL, &n.SourceTitle, &n.SourceType, &n.Text, &n.ChunkIdx, &metadataBytes); scanErr != nil {
			return nil, fmt.Errorf("scan neighbor row: %w", scanErr)
		}
		n.Metadata = decodeMetadata(metadataBytes)
		out = append(out, n)
	}
	return out, rows.Err()
}

// fillMissingEmbeddings implements the §4.1 missing-embedding policy:
// if embed_missing=true and the candidate set contains chunks with no
// vector, embed them in batches and persist before ranking.
func (s *Store) fillMissingEmbeddings(ctx context.Context, candidates []Chunk) error {
	if s.embedder == nil {
		return nil
	}
	var missingIdx []int
	var texts []string
	for i, c := range candidates {
		if len(c.Embedding) == 0 {
			missingIdx = append(missingIdx, i)
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed missing chunks: %w", err)
	}
	for i, idx := range missingIdx {
		if i >= len(vecs) {
			break
		}
		candidates[idx].Embedding = vecs[i]
		if _, err := s.db.ExecContext(ctx, `
			UPDATE truthcheck.evidence_chunks SET embedding = $1 WHERE id = $2
		`, pgvector.NewVector(vecs[i]), candidates[idx].ID); err != nil {
			return fmt.Errorf("persist embedding for chunk %s: %w", candidates[idx].ID, err)
		}
	}
	return nil
}

// Upsert replaces all chunks for each distinct source_url with the
// given set, inside one transaction per call. Grounded on the
// teacher's delete-then-insert corpus maintenance in store.go; here
// there is no tenant scoping, only source_url.
func (s *Store) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	sources := map[string]struct{}{}
	for _, c := range chunks {
		if c.SourceURL == "" {
			return errors.New("source url is required for chunk")
		}
		sources[c.SourceURL] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for url := range sources {
		if _, execErr := tx.ExecContext(ctx, `
			DELETE FROM truthcheck.evidence_chunks WHERE source_url = $1
		`, url); execErr != nil {
			return fmt.Errorf("delete existing chunks: %w", execErr)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO truthcheck.evidence_chunks (
			source_url, source_title, source_type, page_title,
			chunk_text, chunk_index, embedding, metadata, tsv
		) VALUES ($1, $2, $3, $2, $4, $5, $6, $7, to_tsvector('simple', $4))
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metadataBytes, mErr := json.Marshal(c.Metadata)
		if mErr != nil {
			return fmt.Errorf("encode metadata: %w", mErr)
		}
		var embeddingArg any
		if len(c.Embedding) > 0 {
			embeddingArg = pgvector.NewVector(c.Embedding)
		}
		if _, execErr := stmt.ExecContext(ctx,
			c.SourceURL, c.SourceTitle, c.SourceType,
			c.Text, c.ChunkIdx, embeddingArg, metadataBytes,
		); execErr != nil {
			return fmt.Errorf("insert chunk: %w", execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func joinTruncate(c Chunk, neighbors []Chunk, maxChars int) string {
	parts := make([]string, 0, len(neighbors)+1)
	before := make([]Chunk, 0, len(neighbors))
	after := make([]Chunk, 0, len(neighbors))
	for _, n := range neighbors {
		if n.ChunkIdx < c.ChunkIdx {
			before = append(before, n)
		} else {
			after = append(after, n)
		}
	}
	sort.Slice(before, func(i, j int) bool { return before[i].ChunkIdx < before[j].ChunkIdx })
	sort.Slice(after, func(i, j int) bool { return after[i].ChunkIdx < after[j].ChunkIdx })
	for _, n := range before {
		parts = append(parts, n.Text)
	}
	parts = append(parts, c.Text)
	for _, n := range after {
		parts = append(parts, n.Text)
	}
	joined := strings.Join(parts, "\n")
	if maxChars > 0 && len(joined) > maxChars {
		joined = joined[:maxChars]
	}
	return joined
}

func buildPromptContext(hits []Hit) string {
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, h.Chunk.SourceTitle, h.Chunk.SourceURL, h.Text)
	}
	return strings.TrimSpace(b.String())
}

func titleBoost(question, title string) float64 {
	if title == "" {
		return 0
	}
	titleLower := strings.ToLower(title)
	for _, tok := range strings.Fields(strings.ToLower(question)) {
		if len(tok) >= 2 && titleLower == tok {
			return titleBoostWeight
		}
	}
	return 0
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func decodeMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

func pageIDsArg(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	return pq.Array(ids)
}

func uniqueLowerTerms(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	terms := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) >= 2 {
			terms[w] = struct{}{}
		}
	}
	return terms
}

func keywordOverlap(terms map[string]struct{}, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	found := 0
	for term := range terms {
		if strings.Contains(lower, term) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}
