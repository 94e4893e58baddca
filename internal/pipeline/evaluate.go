package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"frameworks/truthcheck/internal/pipelinestate"
)

const (
	evidenceSnippetMaxLen = 500
	evaluatorTimeout      = 60 * time.Second
)

type evaluatorLLMResult struct {
	Stance           string   `json:"stance"`
	Confidence       float64  `json:"confidence"`
	ReasoningBullets []string `json:"reasoning_bullets"`
	Citations        []struct {
		URL   string  `json:"url"`
		Quote string  `json:"quote"`
		Score float64 `json:"relevance"`
	} `json:"citations"`
	WeakPoints      []string `json:"weak_points"`
	FollowupQueries []string `json:"followup_queries"`
}

const supportSystemPrompt = `You are evaluating evidence FOR a claim, looking for the strongest support.
Respond with ONLY JSON: {"stance": "TRUE"|"FALSE"|"MIXED"|"UNVERIFIED", "confidence": 0-1, "reasoning_bullets": ["..."],
"citations": [{"url": "...", "quote": "...", "relevance": 0-1}], "weak_points": ["..."], "followup_queries": ["..."]}
stance judges the claim itself, not your assignment: TRUE if the evidence confirms it, FALSE if it refutes it,
MIXED if the evidence cuts both ways, UNVERIFIED if the evidence is insufficient either way.
Every quote must be copied verbatim from the provided evidence snippets.`

const skepticSystemPrompt = `You are evaluating evidence AGAINST a claim, looking for the strongest rebuttal.
Respond with ONLY JSON: {"stance": "TRUE"|"FALSE"|"MIXED"|"UNVERIFIED", "confidence": 0-1, "reasoning_bullets": ["..."],
"citations": [{"url": "...", "quote": "...", "relevance": 0-1}], "weak_points": ["..."], "followup_queries": ["..."]}
stance judges the claim itself, not your assignment: TRUE if the evidence confirms it, FALSE if it refutes it,
MIXED if the evidence cuts both ways, UNVERIFIED if the evidence is insufficient either way.
Every quote must be copied verbatim from the provided evidence snippets.`

// evaluateBoth implements S6/S7 as a single parallel join: the support
// and skeptic drafts are genuinely independent, so they run
// concurrently. Both StageSupport and StageSkeptic map to this method
// in runStage's dispatch, so each half guards itself against being
// recomputed once its verdict is already set.
func (p *Pipeline) evaluateBoth(ctx context.Context, state *pipelinestate.State) error {
	g, gctx := errgroup.WithContext(ctx)

	if state.VerdictSupport == nil {
		g.Go(func() error {
			verdict := p.evaluateStance(gctx, state, state.EvidenceTopKSupport, supportSystemPrompt)
			state.VerdictSupport = verdict
			return nil
		})
	}
	if state.VerdictSkeptic == nil {
		g.Go(func() error {
			verdict := p.evaluateStance(gctx, state, state.EvidenceTopKSkeptic, skepticSystemPrompt)
			state.VerdictSkeptic = verdict
			return nil
		})
	}
	_ = g.Wait() // each half degrades to UNVERIFIED internally; never aborts the other

	if !state.HasStage(StageSupport) {
		state.LogStage(StageSupport, map[string]any{"stance": state.VerdictSupport.Stance, "confidence": state.VerdictSupport.Confidence}, state.VerdictSupport)
	}
	if !state.HasStage(StageSkeptic) {
		state.LogStage(StageSkeptic, map[string]any{"stance": state.VerdictSkeptic.Stance, "confidence": state.VerdictSkeptic.Confidence}, state.VerdictSkeptic)
	}
	return nil
}

// evaluateStance builds one perspective's draft verdict from its
// evidence pool (systemPrompt fixes whether it argues for or against
// the claim; the resulting draft.Stance is the evaluator's own TRUE/
// FALSE/MIXED/UNVERIFIED judgment of the claim, not which side argued
// it). Citations whose quote cannot be matched against the source
// snippet are dropped; if none survive, the draft is forced to
// UNVERIFIED with zero confidence per §4.6.
func (p *Pipeline) evaluateStance(ctx context.Context, state *pipelinestate.State, pool []pipelinestate.ScoredEvidence, systemPrompt string) *pipelinestate.DraftVerdict {
	poolType := "specialized"
	if len(pool) == 0 {
		poolType = "general_fallback"
		pool = state.EvidenceTopK
	}

	avgTrust := averageCredibility(pool)
	draft := &pipelinestate.DraftVerdict{
		Stance:             pipelinestate.StanceUnverified,
		InputPoolType:      poolType,
		TotalEvidenceCount: len(pool),
		InputPoolAvgTrust:  avgTrust,
	}

	if p.LLM == nil || p.LLM.Evaluator == nil || len(pool) == 0 {
		return draft
	}

	callCtx, cancel := context.WithTimeout(ctx, evaluatorTimeout)
	defer cancel()

	prompt := buildEvaluatorPrompt(state.ClaimText, pool)
	var out evaluatorLLMResult
	if _, err := p.LLM.Evaluator.CallJSON(callCtx, systemPrompt, prompt, 1024, 0.2, &out); err != nil {
		return draft
	}

	citations := validateCitations(out.Citations, pool)
	draft.ReasoningBullets = out.ReasoningBullets
	draft.WeakPoints = out.WeakPoints
	draft.FollowupQueries = out.FollowupQueries
	draft.Citations = citations

	if len(citations) == 0 {
		draft.Stance = pipelinestate.StanceUnverified
		draft.Confidence = 0
		return draft
	}

	draft.Stance = parseDraftStance(out.Stance)
	draft.Confidence = clampConfidence(out.Confidence)
	return draft
}

// parseDraftStance maps the evaluator's stance label onto the four
// verdict-level stances, defaulting to UNVERIFIED for anything else
// (missing field, stray whitespace, a model that ignored the prompt).
func parseDraftStance(label string) pipelinestate.Stance {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case string(pipelinestate.StanceTrue):
		return pipelinestate.StanceTrue
	case string(pipelinestate.StanceFalse):
		return pipelinestate.StanceFalse
	case string(pipelinestate.StanceMixed):
		return pipelinestate.StanceMixed
	default:
		return pipelinestate.StanceUnverified
	}
}

func buildEvaluatorPrompt(claimText string, pool []pipelinestate.ScoredEvidence) string {
	var b strings.Builder
	b.WriteString("Claim: ")
	b.WriteString(claimText)
	b.WriteString("\n\nEvidence:\n")
	for i, ev := range pool {
		snippet := ev.Snippet
		if snippet == "" {
			snippet = ev.Content
		}
		snippet = truncateRunes(snippet, evidenceSnippetMaxLen)
		b.WriteString("[")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(ev.URL)
		b.WriteString(": ")
		b.WriteString(snippet)
		b.WriteString("\n")
	}
	return b.String()
}

// validateCitations keeps only citations whose quote can be matched
// against the evidence it claims to come from, either as a case-folded
// substring or via ≥0.8 token overlap (accounts for LLM paraphrasing
// of whitespace/punctuation without accepting fabricated quotes).
func validateCitations(raw []struct {
	URL   string  `json:"url"`
	Quote string  `json:"quote"`
	Score float64 `json:"relevance"`
}, pool []pipelinestate.ScoredEvidence) []pipelinestate.Citation {
	byURL := make(map[string]pipelinestate.ScoredEvidence, len(pool))
	for _, ev := range pool {
		byURL[ev.URL] = ev
	}

	out := make([]pipelinestate.Citation, 0, len(raw))
	for _, c := range raw {
		ev, ok := byURL[c.URL]
		if !ok || strings.TrimSpace(c.Quote) == "" {
			continue
		}
		source := ev.Snippet
		if source == "" {
			source = ev.Content
		}
		if !quoteMatches(c.Quote, source) {
			continue
		}
		out = append(out, pipelinestate.Citation{
			SourceType: ev.SourceType,
			Title:      ev.Title,
			URL:        ev.URL,
			Quote:      c.Quote,
			Relevance:  clampConfidence(c.Score),
			EvidID:     ev.EvidID,
		})
	}
	return out
}

func quoteMatches(quote, source string) bool {
	foldedQuote := strings.ToLower(quote)
	foldedSource := strings.ToLower(source)
	if strings.Contains(foldedSource, foldedQuote) {
		return true
	}
	return tokenOverlapRatio(foldedQuote, foldedSource) >= 0.8
}

func tokenOverlapRatio(a, b string) float64 {
	aTokens := strings.Fields(a)
	if len(aTokens) == 0 {
		return 0
	}
	bSet := make(map[string]bool)
	for _, t := range strings.Fields(b) {
		bSet[t] = true
	}
	matched := 0
	for _, t := range aTokens {
		if bSet[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(aTokens))
}

func averageCredibility(pool []pipelinestate.ScoredEvidence) float64 {
	if len(pool) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range pool {
		sum += ev.Metadata.CredibilityScore
	}
	return sum / float64(len(pool))
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
