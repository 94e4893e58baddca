package pipeline

import (
	"context"
	"io"
	"testing"

	"frameworks/truthcheck/internal/llmclient"
	"frameworks/truthcheck/internal/pipelinestate"
)

func TestEvaluateStanceWithoutLLMReturnsUnverified(t *testing.T) {
	p := &Pipeline{}
	state := newTestState(pipelinestate.InputText, "claim")
	pool := []pipelinestate.ScoredEvidence{
		{EvidenceCandidate: pipelinestate.EvidenceCandidate{URL: "https://a.com", Snippet: "evidence text"}},
	}

	draft := p.evaluateStance(context.Background(), state, pool, supportSystemPrompt)
	if draft.Stance != pipelinestate.StanceUnverified {
		t.Fatalf("expected UNVERIFIED draft without an LLM client, got %s", draft.Stance)
	}
	if draft.TotalEvidenceCount != 1 {
		t.Fatalf("expected pool size 1, got %d", draft.TotalEvidenceCount)
	}
}

func TestEvaluateStanceFallsBackToGeneralPoolWhenEmpty(t *testing.T) {
	p := &Pipeline{}
	state := newTestState(pipelinestate.InputText, "claim")
	state.EvidenceTopK = []pipelinestate.ScoredEvidence{
		{EvidenceCandidate: pipelinestate.EvidenceCandidate{URL: "https://a.com"}},
	}

	draft := p.evaluateStance(context.Background(), state, nil, supportSystemPrompt)
	if draft.InputPoolType != "general_fallback" {
		t.Fatalf("expected general_fallback pool type, got %s", draft.InputPoolType)
	}
}

func TestEvaluateBothIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	p := &Pipeline{}
	state := newTestState(pipelinestate.InputText, "claim")

	if err := p.evaluateBoth(context.Background(), state); err != nil {
		t.Fatalf("evaluateBoth returned error: %v", err)
	}
	firstSupport := state.VerdictSupport
	firstSkeptic := state.VerdictSkeptic

	if err := p.evaluateBoth(context.Background(), state); err != nil {
		t.Fatalf("second evaluateBoth returned error: %v", err)
	}
	if state.VerdictSupport != firstSupport || state.VerdictSkeptic != firstSkeptic {
		t.Fatal("evaluateBoth should not recompute already-set verdicts")
	}
}

func TestQuoteMatchesExactSubstring(t *testing.T) {
	if !quoteMatches("the sky is blue", "Weather report: the sky is blue today.") {
		t.Fatal("expected exact case-folded substring to match")
	}
}

func TestQuoteMatchesRejectsUnrelatedText(t *testing.T) {
	if quoteMatches("the moon is made of cheese", "the sky is blue today") {
		t.Fatal("expected unrelated quote to fail validation")
	}
}

func TestValidateCitationsDropsUnknownURL(t *testing.T) {
	pool := []pipelinestate.ScoredEvidence{
		{EvidenceCandidate: pipelinestate.EvidenceCandidate{URL: "https://a.com", Snippet: "the sky is blue"}},
	}
	raw := []struct {
		URL   string  `json:"url"`
		Quote string  `json:"quote"`
		Score float64 `json:"relevance"`
	}{
		{URL: "https://unknown.com", Quote: "the sky is blue"},
	}
	out := validateCitations(raw, pool)
	if len(out) != 0 {
		t.Fatalf("expected citation referencing an unknown URL to be dropped, got %d", len(out))
	}
}

func TestValidateCitationsStampsEvidIDFromPool(t *testing.T) {
	pool := []pipelinestate.ScoredEvidence{
		{
			EvidenceCandidate: pipelinestate.EvidenceCandidate{URL: "https://a.com", Snippet: "the sky is blue"},
			EvidID:            "ev_deadbeefcafe",
		},
	}
	raw := []struct {
		URL   string  `json:"url"`
		Quote string  `json:"quote"`
		Score float64 `json:"relevance"`
	}{
		{URL: "https://a.com", Quote: "the sky is blue"},
	}
	out := validateCitations(raw, pool)
	if len(out) != 1 {
		t.Fatalf("expected one surviving citation, got %d", len(out))
	}
	if out[0].EvidID != "ev_deadbeefcafe" {
		t.Fatalf("expected citation to carry the pool entry's evid_id, got %q", out[0].EvidID)
	}
}

func TestParseDraftStanceRecognizesAllFourLabels(t *testing.T) {
	cases := map[string]pipelinestate.Stance{
		"TRUE":       pipelinestate.StanceTrue,
		"false":      pipelinestate.StanceFalse,
		" Mixed ":    pipelinestate.StanceMixed,
		"UNVERIFIED": pipelinestate.StanceUnverified,
		"":           pipelinestate.StanceUnverified,
		"support":    pipelinestate.StanceUnverified,
	}
	for label, want := range cases {
		if got := parseDraftStance(label); got != want {
			t.Errorf("parseDraftStance(%q) = %s, want %s", label, got, want)
		}
	}
}

func TestEvaluateStanceDerivesDraftStanceFromLLMJudgment(t *testing.T) {
	provider := &fakeEvaluatorProvider{
		response: `{"stance":"FALSE","confidence":0.7,"citations":[{"url":"https://a.com","quote":"the sky is blue"}]}`,
	}
	p := &Pipeline{LLM: &llmclient.Clients{Evaluator: llmclient.NewClient("evaluator", provider, nil)}}
	state := newTestState(pipelinestate.InputText, "claim")
	pool := []pipelinestate.ScoredEvidence{
		{EvidenceCandidate: pipelinestate.EvidenceCandidate{URL: "https://a.com", Snippet: "the sky is blue today"}},
	}

	draft := p.evaluateStance(context.Background(), state, pool, supportSystemPrompt)
	if draft.Stance != pipelinestate.StanceFalse {
		t.Fatalf("expected draft stance to come from the evaluator's own judgment (FALSE), got %s", draft.Stance)
	}
	if len(draft.Citations) != 1 || draft.Citations[0].URL != "https://a.com" {
		t.Fatalf("expected the citation to survive validation, got %+v", draft.Citations)
	}
}

// fakeEvaluatorProvider stands in for a real llmclient.Provider,
// returning a single scripted completion.
type fakeEvaluatorProvider struct {
	response string
}

func (f *fakeEvaluatorProvider) Complete(ctx context.Context, messages []llmclient.Message, tools []llmclient.Tool) (llmclient.Stream, error) {
	return &fakeEvaluatorStream{content: f.response}, nil
}

type fakeEvaluatorStream struct {
	content string
	sent    bool
}

func (f *fakeEvaluatorStream) Recv() (llmclient.Chunk, error) {
	if f.sent {
		return llmclient.Chunk{}, io.EOF
	}
	f.sent = true
	return llmclient.Chunk{Content: f.content}, nil
}

func (f *fakeEvaluatorStream) Close() error { return nil }
