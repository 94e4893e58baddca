package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"frameworks/truthcheck/internal/pipelinestate"
)

type judgeLLMResult struct {
	Summary              string   `json:"summary"`
	Rationale            []string `json:"rationale"`
	CounterEvidence      []string `json:"counter_evidence"`
	Limitations          []string `json:"limitations"`
	RecommendedNextSteps []string `json:"recommended_next_steps"`
}

const judgeSystemPrompt = `You write the final user-facing verdict summary for a fact-check.
Respond with ONLY JSON: {"summary": "...", "rationale": ["..."], "counter_evidence": ["..."],
"limitations": ["..."], "recommended_next_steps": ["..."]}
Be concise and neutral; do not invent evidence beyond what is given.`

// judge implements S9: gate the aggregated draft on quality_score,
// then synthesize the user-facing FinalVerdict. Below the quality
// cutoff, the verdict is downgraded to UNVERIFIED regardless of what
// the draft concluded, per §4.6's quality-gate rule.
func (p *Pipeline) judge(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageJudge) {
		return nil
	}

	cutoff := p.Config.Stage9QualityCutoff
	if cutoff <= 0 {
		cutoff = 65
	}
	gateFailed := state.QualityScore < cutoff

	draft := state.DraftVerdict
	if draft == nil {
		draft = &pipelinestate.DraftVerdict{Stance: pipelinestate.StanceUnverified}
	}

	label := labelFromStance(draft.Stance)
	confidence := draft.Confidence
	if gateFailed {
		label = pipelinestate.LabelUnverified
		confidence = 0
		state.AddRiskFlag(pipelinestate.RiskQualityGateFailed)
	}

	summary, rationale, counter, limitations, next := p.synthesizeJudgement(ctx, state, draft, label, confidence, gateFailed)

	latency := time.Since(state.StartedAt)
	state.FinalVerdict = &pipelinestate.FinalVerdict{
		AnalysisID:           state.AnalysisID,
		Label:                label,
		Confidence:           confidence,
		Summary:              summary,
		ModelInfo:            judgeModelInfo(p),
		LatencyMS:            latency.Milliseconds(),
		CreatedAt:            time.Now(),
		Rationale:            rationale,
		Citations:            draft.Citations,
		CounterEvidence:      counter,
		Limitations:          limitations,
		RecommendedNextSteps: next,
		RiskFlags:            state.RiskMarkers,
		StageLogs:            state.StageLogs,
		QualityScore:         state.QualityScore,
		QualityGateFailed:    gateFailed,
	}

	state.LogStage(StageJudge, map[string]any{
		"label":               label,
		"confidence":          confidence,
		"quality_gate_failed": gateFailed,
	}, state.FinalVerdict)
	return nil
}

func labelFromStance(stance pipelinestate.Stance) pipelinestate.Label {
	switch stance {
	case pipelinestate.StanceTrue:
		return pipelinestate.LabelTrue
	case pipelinestate.StanceFalse:
		return pipelinestate.LabelFalse
	case pipelinestate.StanceMixed:
		return pipelinestate.LabelMixed
	default:
		return pipelinestate.LabelUnverified
	}
}

func judgeModelInfo(p *Pipeline) pipelinestate.ModelInfo {
	return pipelinestate.ModelInfo{
		Provider: p.Config.LLMProvider,
		Model:    p.Config.JudgeModel,
	}
}

// synthesizeJudgement asks the judge model for the user-facing prose
// fields, falling back to the deterministic "<label> (confidence <c>):
// <first 2 reasoning bullets joined by '; '>." template when the judge
// is unavailable or returns nothing usable — the disclaimer bullet is
// always present when the quality gate failed.
func (p *Pipeline) synthesizeJudgement(ctx context.Context, state *pipelinestate.State, draft *pipelinestate.DraftVerdict, label pipelinestate.Label, confidence float64, gateFailed bool) (summary string, rationale, counter, limitations, next []string) {
	rationale = draft.ReasoningBullets
	counter = draft.WeakPoints
	limitations = nil
	next = draft.FollowupQueries

	if gateFailed {
		limitations = append(limitations, "Evidence quality did not meet the threshold required for a confident verdict.")
	}

	if p.LLM != nil && p.LLM.Judge != nil {
		var out judgeLLMResult
		if _, err := p.LLM.Judge.CallJSON(ctx, judgeSystemPrompt, buildJudgePrompt(state, draft, label), 768, 0.2, &out); err == nil && out.Summary != "" {
			if gateFailed {
				out.Limitations = append([]string{"Evidence quality did not meet the threshold required for a confident verdict."}, out.Limitations...)
			}
			return out.Summary, out.Rationale, out.CounterEvidence, out.Limitations, out.RecommendedNextSteps
		}
	}

	summary = fmt.Sprintf("%s (confidence %.2f): %s.", label, confidence, joinFirstBullets(rationale, 2))
	return summary, rationale, counter, limitations, next
}

func joinFirstBullets(bullets []string, n int) string {
	if len(bullets) == 0 {
		return "no supporting reasoning was available"
	}
	if len(bullets) > n {
		bullets = bullets[:n]
	}
	return strings.Join(bullets, "; ")
}

func buildJudgePrompt(state *pipelinestate.State, draft *pipelinestate.DraftVerdict, label pipelinestate.Label) string {
	return fmt.Sprintf("Claim: %s\nLabel: %s\nSupport reasoning: %v\nSkeptic reasoning: %v\n",
		state.ClaimText, label, draft.ReasoningBullets, draft.WeakPoints)
}
