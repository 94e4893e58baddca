// Package scoring implements C5, the fusion formula that turns a
// merged EvidenceCandidate pool into ScoredEvidence (SPEC_FULL.md
// §4.5). The token-overlap helper follows the keyword-containment
// style of internal/retrieval's keyword reranking, adapted here to the
// Jaccard-like overlap the formula calls for; the per-candidate
// weighted-sum-with-caps composition itself has no library analogue in
// the pack and is implemented directly.
package scoring

import (
	"sort"
	"strings"

	"frameworks/truthcheck/internal/pipelinestate"
)

// sourcePrior is the per-SourceType multiplier applied to overlap.
var sourcePrior = map[pipelinestate.SourceType]float64{
	pipelinestate.SourceWebURL: 1.0,
	pipelinestate.SourceNews:   1.1,
	pipelinestate.SourceWiki:   1.05,
	pipelinestate.SourceKBDoc:  1.0,
}

// intentBonus is the additive per-intent bonus.
var intentBonus = map[string]float64{
	"official_statement": 0.05,
	"fact_check":         0.08,
}

// Config carries the tunables §4.5 names as defaults.
type Config struct {
	LowOverlapThreshold float64 // default 0.4
	RumorCapThreshold   float64 // default 0.78
}

// Diagnostics is written to PipelineState.ScoreDiagnostics.
type Diagnostics struct {
	CandidateCount           int     `json:"candidate_count"`
	HighScoreLowOverlapCount int     `json:"high_score_low_overlap_count"`
	OverlapCapAppliedCount   int     `json:"overlap_cap_applied_count"`
	AverageScore             float64 `json:"average_score"`
}

// Score applies C5 to every candidate and returns them sorted
// descending by score, along with the run's diagnostics. claimText
// supplies the token set overlap is measured against.
func Score(cfg Config, claimText string, candidates []pipelinestate.EvidenceCandidate) ([]pipelinestate.ScoredEvidence, Diagnostics) {
	claimTerms := tokenSet(claimText)
	scored := make([]pipelinestate.ScoredEvidence, 0, len(candidates))
	diag := Diagnostics{CandidateCount: len(candidates)}

	var scoreSum float64
	for _, candidate := range candidates {
		overlap := jaccardOverlap(claimTerms, tokenSet(candidate.Content))
		prior := sourcePriorFor(candidate.SourceType)
		trust := candidate.Metadata.CredibilityScore
		bonus := intentBonus[candidate.Metadata.Intent]

		raw := overlap*prior + 0.25*trust + bonus
		raw = clamp01(raw)

		capApplied := false
		if overlap < cfg.LowOverlapThreshold {
			if raw > cfg.RumorCapThreshold {
				diag.HighScoreLowOverlapCount++
				raw = cfg.RumorCapThreshold
			}
			capApplied = true
			diag.OverlapCapAppliedCount++
		}

		scoreSum += raw
		scored = append(scored, pipelinestate.ScoredEvidence{
			EvidenceCandidate: candidate,
			Score:             raw,
			ScoreBreakdown: pipelinestate.ScoreBreakdown{
				Overlap:           overlap,
				Prior:             prior,
				Trust:             trust,
				HTML:              candidate.Metadata.HTMLSignalScore,
				IntentBonus:       bonus,
				Stance:            candidate.Metadata.Stance,
				OverlapCapApplied: capApplied,
			},
		})
	}

	if len(scored) > 0 {
		diag.AverageScore = scoreSum / float64(len(scored))
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, diag
}

func sourcePriorFor(t pipelinestate.SourceType) float64 {
	if p, ok := sourcePrior[t]; ok {
		return p
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// tokenSet lowercases and splits text into a deduplicated token set,
// dropping single-character tokens as noise.
func tokenSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) >= 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// jaccardOverlap is |A ∩ B| / |A ∪ B| over the claim's and the
// candidate's token sets; 0 when either side is empty.
func jaccardOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for term := range a {
		if _, ok := b[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
