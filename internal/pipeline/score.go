package pipeline

import (
	"context"

	"frameworks/truthcheck/internal/pipelinestate"
	"frameworks/truthcheck/internal/scoring"
)

// score implements S4: fuse the merged evidence pool into
// ScoredEvidence via the C5 formula, then clear the transient
// candidate pool (§4.5's contract: EvidenceCandidates does not survive
// past this stage).
func (p *Pipeline) score(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageScore) {
		return nil
	}

	scored, diag := scoring.Score(p.Scoring, state.ClaimText, state.EvidenceCandidates)
	state.ScoredEvidence = scored
	state.ScoreDiagnostics = map[string]any{
		"candidate_count":              diag.CandidateCount,
		"high_score_low_overlap_count": diag.HighScoreLowOverlapCount,
		"overlap_cap_applied_count":    diag.OverlapCapAppliedCount,
		"average_score":                diag.AverageScore,
	}
	state.EvidenceCandidates = nil

	state.LogStage(StageScore, state.ScoreDiagnostics, scored)
	return nil
}
