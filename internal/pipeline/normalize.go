package pipeline

import (
	"context"
	"strings"

	"frameworks/truthcheck/internal/pipelinestate"
)

// normalizeResult is the JSON schema asked of the querygen client's
// LLM-mode normalizer; its fields map 1:1 onto State's S1 outputs.
type normalizeResult struct {
	ClaimText            string            `json:"claim_text"`
	OriginalIntent       string            `json:"original_intent"`
	ClaimMode            string            `json:"claim_mode"`
	VerificationPriority string            `json:"verification_priority"`
	EntityMap            map[string]string `json:"entity_map"`
	RiskMarkers          []string          `json:"risk_markers"`
	CanonicalEvidence    []string          `json:"canonical_evidence"`
}

const normalizeSystemPrompt = `You normalize a user's claim submission for fact-checking.
Given the raw text, respond with ONLY a JSON object:
{"claim_text": "...", "original_intent": "verification"|"exploration", "claim_mode": "fact"|"rumor"|"mixed",
 "verification_priority": "low"|"normal"|"high", "entity_map": {"name": "description"}, "risk_markers": ["..."],
 "canonical_evidence": ["..."]}
claim_text must be a clean, self-contained statement of the claim under evaluation.`

// normalize implements S1: resolve claim_text (via the prefetcher for
// URL input), then apply the LLM or basic normalizer per
// normalize_mode. Empty claim_text after normalization is terminal but
// not an error: a REFUSED verdict is set directly on state, and Run
// recognizes a FinalVerdict set this early as a successful early exit
// rather than a stage failure.
func (p *Pipeline) normalize(ctx context.Context, state *pipelinestate.State) error {
	if state.HasStage(StageNormalize) {
		return nil
	}

	source := state.InputPayload
	if state.InputType == pipelinestate.InputURL {
		result, err := p.Prefetch.Prefetch(ctx, state.InputPayload)
		if err != nil {
			state.AddRiskFlag(pipelinestate.RiskPrefetchFailed)
			source = state.InputPayload
		} else if result.Text != "" {
			source = result.Text
		} else {
			source = state.InputPayload
		}
	}

	var out normalizeResult
	if state.NormalizeMode == "basic" || p.LLM == nil || p.LLM.Querygen == nil {
		out = basicNormalize(source)
	} else {
		raw, err := p.LLM.Querygen.CallJSON(ctx, normalizeSystemPrompt, source, 512, 0, &out)
		if err != nil || strings.TrimSpace(out.ClaimText) == "" {
			_ = raw
			out = basicNormalize(source)
		}
	}

	state.ClaimText = strings.TrimSpace(out.ClaimText)
	state.OriginalIntent = pipelinestate.OriginalIntent(defaultString(out.OriginalIntent, "verification"))
	state.ClaimMode = pipelinestate.ClaimMode(defaultString(out.ClaimMode, "fact"))
	state.VerificationPriority = defaultString(out.VerificationPriority, "normal")
	state.EntityMap = out.EntityMap
	if state.EntityMap == nil {
		state.EntityMap = map[string]string{}
	}
	for _, marker := range out.RiskMarkers {
		state.AddRiskFlag(marker)
	}
	state.CanonicalEvidence = out.CanonicalEvidence

	state.LogStage(StageNormalize, map[string]any{
		"claim_text_len": len(state.ClaimText),
		"claim_mode":     state.ClaimMode,
	}, out)

	if state.ClaimText == "" {
		state.FinalVerdict = &pipelinestate.FinalVerdict{
			AnalysisID: state.AnalysisID,
			Label:      pipelinestate.LabelRefused,
			Confidence: 0,
			Summary:    "The submitted input did not contain a verifiable claim.",
			RiskFlags:  state.RiskMarkers,
			StageLogs:  state.StageLogs,
		}
	}
	return nil
}

// basicNormalize is the minimum-contract fallback: strip and collapse
// whitespace, nothing more.
func basicNormalize(text string) normalizeResult {
	fields := strings.Fields(text)
	return normalizeResult{
		ClaimText:            strings.Join(fields, " "),
		OriginalIntent:       "verification",
		ClaimMode:            "fact",
		VerificationPriority: "normal",
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
