package pipeline

import (
	"context"

	"frameworks/truthcheck/internal/pipelinestate"
)

const (
	qualityCitationWeight  = 40.0
	qualityCredWeight      = 30.0
	qualityAgreementWeight = 20.0
	qualityDiversityWeight = 10.0
	qualityCitationCap     = 6
)

// aggregate implements S8: merge the support and skeptic drafts into
// one DraftVerdict per §4.6's agreement rules, and compute the
// [0,100] quality_score that S9 gates on.
func (p *Pipeline) aggregate(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageAggregate) {
		return nil
	}

	support := state.VerdictSupport
	skeptic := state.VerdictSkeptic
	if support == nil {
		support = &pipelinestate.DraftVerdict{Stance: pipelinestate.StanceUnverified}
	}
	if skeptic == nil {
		skeptic = &pipelinestate.DraftVerdict{Stance: pipelinestate.StanceUnverified}
	}

	merged := mergeDrafts(support, skeptic)
	state.DraftVerdict = merged
	state.SupportPack = state.EvidenceTopKSupport
	state.SkepticPack = state.EvidenceTopKSkeptic

	index := make(map[string]pipelinestate.ScoredEvidence, len(state.EvidenceTopK))
	for _, ev := range state.EvidenceTopK {
		index[ev.URL] = ev
	}
	state.EvidenceIndex = index

	state.QualityScore = computeQualityScore(merged, state.EvidenceTopK)

	state.LogStage(StageAggregate, map[string]any{
		"stance":        merged.Stance,
		"confidence":    merged.Confidence,
		"quality_score": state.QualityScore,
	}, merged)
	return nil
}

// mergeDrafts implements §4.6's merge table:
//   - both UNVERIFIED -> UNVERIFIED, confidence 0
//   - same non-UNVERIFIED stance -> keep stance, confidence = mean, bullets union-deduped
//   - opposite non-UNVERIFIED stances -> MIXED, confidence = |c_support - c_skeptic|
//   - exactly one UNVERIFIED -> adopt the other's stance, confidence * 0.7
func mergeDrafts(support, skeptic *pipelinestate.DraftVerdict) *pipelinestate.DraftVerdict {
	merged := &pipelinestate.DraftVerdict{
		Citations:  dedupeCitations(append(append([]pipelinestate.Citation{}, support.Citations...), skeptic.Citations...)),
		WeakPoints: append(append([]string{}, support.WeakPoints...), skeptic.WeakPoints...),
	}

	supportU := support.Stance == pipelinestate.StanceUnverified
	skepticU := skeptic.Stance == pipelinestate.StanceUnverified

	switch {
	case supportU && skepticU:
		merged.Stance = pipelinestate.StanceUnverified
		merged.Confidence = 0
		merged.ReasoningBullets = unionDedup(support.ReasoningBullets, skeptic.ReasoningBullets)
	case supportU != skepticU:
		other := support
		if supportU {
			other = skeptic
		}
		merged.Stance = other.Stance
		merged.Confidence = clampConfidence(other.Confidence * 0.7)
		merged.ReasoningBullets = append(append([]string{}, other.ReasoningBullets...))
	case sameStance(support.Stance, skeptic.Stance):
		merged.Stance = support.Stance
		merged.Confidence = (support.Confidence + skeptic.Confidence) / 2
		merged.ReasoningBullets = unionDedup(support.ReasoningBullets, skeptic.ReasoningBullets)
	default:
		merged.Stance = pipelinestate.StanceMixed
		merged.Confidence = absDiff(support.Confidence, skeptic.Confidence)
		merged.ReasoningBullets = unionDedup(support.ReasoningBullets, skeptic.ReasoningBullets)
	}
	return merged
}

func sameStance(a, b pipelinestate.Stance) bool { return a == b }

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func unionDedup(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func dedupeCitations(citations []pipelinestate.Citation) []pipelinestate.Citation {
	seen := make(map[string]bool, len(citations))
	out := make([]pipelinestate.Citation, 0, len(citations))
	for _, c := range citations {
		key := c.URL + "|" + c.Quote
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// computeQualityScore implements §4.6's weighted [0,100] composition:
// citation count (capped at 6) scaled to [0,40], average evidence
// credibility scaled to [0,30], stance agreement scaled to [0,20], and
// source_tier diversity scaled to [0,10].
func computeQualityScore(draft *pipelinestate.DraftVerdict, evidence []pipelinestate.ScoredEvidence) float64 {
	citationScore := float64(len(draft.Citations))
	if citationScore > qualityCitationCap {
		citationScore = qualityCitationCap
	}
	citationScore = (citationScore / qualityCitationCap) * qualityCitationWeight

	credScore := averageCredibility(evidence) * qualityCredWeight

	agreementScore := 0.0
	if draft.Stance != pipelinestate.StanceMixed && draft.Stance != pipelinestate.StanceUnverified {
		agreementScore = qualityAgreementWeight
	} else if draft.Stance == pipelinestate.StanceMixed {
		agreementScore = qualityAgreementWeight * 0.5
	}

	tiers := map[string]bool{}
	for _, ev := range evidence {
		tiers[ev.Metadata.SourceTier] = true
	}
	diversity := float64(len(tiers))
	if diversity > 3 {
		diversity = 3
	}
	diversityScore := (diversity / 3) * qualityDiversityWeight

	return citationScore + credScore + agreementScore + diversityScore
}
