package retrieval

import "sort"

// rrfK is the standard Reciprocal Rank Fusion constant.
const rrfK = 60

// FuseRRF combines a vector-ranked list and a keyword-ranked list of the
// same candidate set with Reciprocal Rank Fusion: score(d) = 1/(k +
// vectorRank) + 1/(k + keywordRank). RRF is rank-based, so it is immune
// to the two rankings having incomparable score scales. Used when mode
// falls back to lexical search but a prior vector pass already scored
// the same rows (§4.1 hybrid degrade path).
func FuseRRF(query string, chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	queryTerms := uniqueLowerTerms(query)
	if len(queryTerms) == 0 {
		return chunks
	}

	n := len(chunks)
	kwScores := make([]float64, n)
	for i, c := range chunks {
		kwScores[i] = keywordOverlap(queryTerms, c.Text)
	}

	vectorOrder := make([]int, n)
	for i := range vectorOrder {
		vectorOrder[i] = i
	}
	sort.SliceStable(vectorOrder, func(a, b int) bool {
		return chunks[vectorOrder[a]].Score > chunks[vectorOrder[b]].Score
	})
	vectorRank := make([]int, n)
	for rank, idx := range vectorOrder {
		vectorRank[idx] = rank + 1
	}

	kwOrder := make([]int, n)
	for i := range kwOrder {
		kwOrder[i] = i
	}
	sort.SliceStable(kwOrder, func(a, b int) bool {
		return kwScores[kwOrder[a]] > kwScores[kwOrder[b]]
	})
	kwRank := make([]int, n)
	for rank, idx := range kwOrder {
		kwRank[idx] = rank + 1
	}

	type scored struct {
		chunk Chunk
		score float64
	}
	items := make([]scored, n)
	for i, c := range chunks {
		items[i] = scored{chunk: c, score: 1.0/float64(rrfK+vectorRank[i]) + 1.0/float64(rrfK+kwRank[i])}
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].score > items[b].score })

	result := make([]Chunk, n)
	for i, item := range items {
		item.chunk.Score = item.score
		result[i] = item.chunk
	}
	return result
}

// DeduplicateBySource caps how many chunks may come from any one source
// URL, returning at most limit results total. Used by S3's evidence
// merge to keep one loud source from crowding out the candidate set.
func DeduplicateBySource(chunks []Chunk, limit, maxPerSource int) []Chunk {
	if len(chunks) <= limit {
		return chunks
	}
	sourceCounts := make(map[string]int)
	result := make([]Chunk, 0, limit)
	for _, chunk := range chunks {
		if len(result) >= limit {
			break
		}
		if sourceCounts[chunk.SourceURL] >= maxPerSource {
			continue
		}
		sourceCounts[chunk.SourceURL]++
		result = append(result, chunk)
	}
	return result
}
