package pipeline

import (
	"context"

	"frameworks/truthcheck/internal/pipelinestate"
	"frameworks/truthcheck/internal/prefetch"
	"frameworks/truthcheck/internal/retrieval"
)

// collectWiki implements S3's run_wiki_async: the single wiki query
// variant is sent to the hybrid retrieval store and every hit is
// converted into a WIKI-tagged EvidenceCandidate, its trust forced to
// the encyclopedia tier.
func (p *Pipeline) collectWiki(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageWiki) {
		return nil
	}
	var wikiQuery *pipelinestate.QueryVariant
	for i := range state.QueryVariants {
		if state.QueryVariants[i].Type == "wiki" {
			wikiQuery = &state.QueryVariants[i]
			break
		}
	}
	if wikiQuery == nil || p.Retrieval == nil {
		state.LogStage(StageWiki, map[string]any{"candidate_count": 0}, nil)
		return nil
	}

	result, err := p.Retrieval.Search(ctx, retrieval.Request{
		Question: wikiQuery.Text,
		TopK:     6,
		Mode:     retrieval.ModeVector,
	})
	if err != nil {
		state.LogStage(StageWiki, map[string]any{"candidate_count": 0, "error": err.Error()}, nil)
		return nil
	}

	for _, hit := range result.Hits {
		trust := prefetch.ResolveTrust(hit.Chunk.SourceURL, "WIKI")
		state.EvidenceCandidates = append(state.EvidenceCandidates, pipelinestate.EvidenceCandidate{
			SourceType: pipelinestate.SourceWiki,
			Title:      hit.Chunk.SourceTitle,
			URL:        hit.Chunk.SourceURL,
			Content:    hit.Text,
			Snippet:    hit.Chunk.Text,
			Metadata: pipelinestate.EvidenceMetadata{
				SourceTier:       string(trust.Tier),
				SourceTrustScore: trust.Score,
				CredibilityScore: trust.Score,
			},
		})
	}
	state.LogStage(StageWiki, map[string]any{"candidate_count": len(result.Hits)}, result.Debug)
	return nil
}

// collectWeb implements S3's run_web_async: every non-wiki query
// variant fans out across every configured search provider.
func (p *Pipeline) collectWeb(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageWeb) {
		return nil
	}
	if p.WebSearch == nil {
		state.LogStage(StageWeb, map[string]any{"candidate_count": 0}, nil)
		return nil
	}
	candidates, stats := p.WebSearch.Dispatch(ctx, state.QueryVariants)
	state.EvidenceCandidates = append(state.EvidenceCandidates, candidates...)
	state.LogStage(StageWeb, map[string]any{
		"candidate_count": len(candidates),
		"provider_errors": len(stats.ProviderErrors),
	}, stats)
	return nil
}

// collectMerge implements S3's run_merge: dedupe the combined
// wiki+web pool by URL, then enrich the top HTML-signal candidates
// with a live fetch for their §4.7 credibility signals before
// finalizing each candidate's source_tier/source_trust_score/
// html_signal_score/credibility_score.
func (p *Pipeline) collectMerge(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageMerge) {
		return nil
	}

	deduped := dedupeByURL(state.EvidenceCandidates)

	htmlEnriched, htmlFailed := 0, 0
	topN := p.Config.Stage3HTMLSignalTopN
	if topN <= 0 {
		topN = 5
	}
	tierCounts := map[string]int{}

	webCount := 0
	for i := range deduped {
		c := &deduped[i]
		if c.SourceType == pipelinestate.SourceWiki {
			tierCounts[c.Metadata.SourceTier]++
			continue
		}

		trust := prefetch.ResolveTrust(c.URL, string(c.SourceType))
		c.Metadata.SourceTier = string(trust.Tier)
		c.Metadata.SourceTrustScore = trust.Score
		c.Metadata.CredibilityScore = trust.Score

		if p.Config.Stage3HTMLSignalEnabled && p.Prefetch != nil && webCount < topN {
			webCount++
			_, signals, err := p.Prefetch.FetchWithSignals(ctx, c.URL)
			if err != nil {
				htmlFailed++
			} else {
				htmlEnriched++
				c.Metadata.HTMLSignalScore = signals.Score
				c.Metadata.HTMLFetchOK = signals.FetchOK
				c.Metadata.CredibilityScore = (trust.Score + signals.Score) / 2
			}
		}
		tierCounts[c.Metadata.SourceTier]++
	}

	state.EvidenceCandidates = deduped
	state.Stage03MergeStats = map[string]any{
		"html_enriched_count":   htmlEnriched,
		"html_fetch_fail_count": htmlFailed,
		"tier_distribution":     tierCounts,
	}
	state.LogStage(StageMerge, state.Stage03MergeStats, deduped)
	return nil
}

func dedupeByURL(candidates []pipelinestate.EvidenceCandidate) []pipelinestate.EvidenceCandidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]pipelinestate.EvidenceCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := c.URL
		if key == "" {
			key = c.Title + "|" + c.Snippet
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
