package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"frameworks/truthcheck/internal/pipelinestate"
)

const topKLimit = 6
const topKPoolCredibilityFloor = 0.7

// topK implements S5: filter scored evidence by the rumor-aware
// threshold, take the top 6, then partition into support/skeptic
// pools (falling back to the general pool when a stance-specific pool
// would otherwise be empty). An empty final top-K sets LOW_EVIDENCE.
func (p *Pipeline) topK(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageTopK) {
		return nil
	}

	threshold := p.Config.Stage5Threshold
	if threshold <= 0 {
		threshold = 0.70
	}
	if state.ClaimMode == pipelinestate.ClaimModeRumor {
		if rumorThreshold := p.Config.Stage5ThresholdRumor; rumorThreshold > 0 {
			threshold = rumorThreshold
		}
	}

	filtered := make([]pipelinestate.ScoredEvidence, 0, len(state.ScoredEvidence))
	for _, ev := range state.ScoredEvidence {
		if ev.Score >= threshold {
			filtered = append(filtered, ev)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if len(filtered) > topKLimit {
		filtered = filtered[:topKLimit]
	}
	for i := range filtered {
		filtered[i].EvidID = evidenceID(filtered[i].URL)
	}
	state.EvidenceTopK = filtered

	support := partitionPool(filtered, pipelinestate.StanceSupport)
	skeptic := partitionPool(filtered, pipelinestate.StanceSkeptic)
	if len(support) == 0 {
		support = filtered
	}
	if len(skeptic) == 0 {
		skeptic = filtered
	}
	state.EvidenceTopKSupport = support
	state.EvidenceTopKSkeptic = skeptic

	if len(filtered) == 0 {
		state.AddRiskFlag(pipelinestate.RiskLowEvidence)
	}

	state.LogStage(StageTopK, map[string]any{
		"topk_count":     len(filtered),
		"support_count":  len(support),
		"skeptic_count":  len(skeptic),
		"threshold_used": threshold,
	}, filtered)
	return nil
}

// evidenceID derives a stable evid_id from a URL so the same source
// resolves to the same citation target across support and skeptic
// pools (both are partitions of the same filtered top-K slice).
func evidenceID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "ev_" + hex.EncodeToString(sum[:])[:12]
}

// partitionPool selects candidates whose stance allows the given pool
// (support accepts support+neutral, skeptic accepts skeptic+neutral)
// and whose credibility clears the floor.
func partitionPool(evidence []pipelinestate.ScoredEvidence, stance pipelinestate.Stance) []pipelinestate.ScoredEvidence {
	out := make([]pipelinestate.ScoredEvidence, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Metadata.CredibilityScore < topKPoolCredibilityFloor {
			continue
		}
		s := ev.Metadata.Stance
		if s == stance || s == pipelinestate.StanceNeutral || s == "" {
			out = append(out, ev)
		}
	}
	return out
}
