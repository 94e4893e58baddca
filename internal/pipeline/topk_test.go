package pipeline

import (
	"context"
	"testing"

	"frameworks/truthcheck/internal/config"
	"frameworks/truthcheck/internal/pipelinestate"
)

func scoredEvidence(url string, score, credibility float64, stance pipelinestate.Stance) pipelinestate.ScoredEvidence {
	return pipelinestate.ScoredEvidence{
		EvidenceCandidate: pipelinestate.EvidenceCandidate{
			URL: url,
			Metadata: pipelinestate.EvidenceMetadata{
				CredibilityScore: credibility,
				Stance:           stance,
			},
		},
		Score: score,
	}
}

func TestTopKFiltersByThresholdAndLimit(t *testing.T) {
	p := &Pipeline{Config: config.Config{Stage5Threshold: 0.5}}
	state := newTestState(pipelinestate.InputText, "claim")
	for i := 0; i < 8; i++ {
		state.ScoredEvidence = append(state.ScoredEvidence, scoredEvidence("u", 0.9-float64(i)*0.05, 0.8, pipelinestate.StanceNeutral))
	}
	state.ScoredEvidence = append(state.ScoredEvidence, scoredEvidence("low", 0.1, 0.8, pipelinestate.StanceNeutral))

	if err := p.topK(context.Background(), state); err != nil {
		t.Fatalf("topK returned error: %v", err)
	}
	if len(state.EvidenceTopK) > topKLimit {
		t.Fatalf("expected at most %d results, got %d", topKLimit, len(state.EvidenceTopK))
	}
	for _, ev := range state.EvidenceTopK {
		if ev.Score < 0.5 {
			t.Fatalf("found evidence below threshold: %v", ev.Score)
		}
	}
}

func TestTopKSetsLowEvidenceFlagWhenEmpty(t *testing.T) {
	p := &Pipeline{Config: config.Config{Stage5Threshold: 0.9}}
	state := newTestState(pipelinestate.InputText, "claim")
	state.ScoredEvidence = []pipelinestate.ScoredEvidence{scoredEvidence("u", 0.1, 0.8, pipelinestate.StanceNeutral)}

	if err := p.topK(context.Background(), state); err != nil {
		t.Fatalf("topK returned error: %v", err)
	}
	found := false
	for _, flag := range state.RiskMarkers {
		if flag == pipelinestate.RiskLowEvidence {
			found = true
		}
	}
	if !found {
		t.Fatal("expected LOW_EVIDENCE risk flag")
	}
}

func TestTopKAssignsStableEvidIDPerURL(t *testing.T) {
	p := &Pipeline{Config: config.Config{Stage5Threshold: 0.5}}
	state := newTestState(pipelinestate.InputText, "claim")
	state.ScoredEvidence = []pipelinestate.ScoredEvidence{
		scoredEvidence("https://a.com", 0.9, 0.8, pipelinestate.StanceNeutral),
		scoredEvidence("https://b.com", 0.8, 0.8, pipelinestate.StanceNeutral),
	}

	if err := p.topK(context.Background(), state); err != nil {
		t.Fatalf("topK returned error: %v", err)
	}
	if len(state.EvidenceTopK) != 2 {
		t.Fatalf("expected 2 entries in top-K, got %d", len(state.EvidenceTopK))
	}
	seen := map[string]bool{}
	for _, ev := range state.EvidenceTopK {
		if ev.EvidID == "" {
			t.Fatalf("expected non-empty evid_id for %s", ev.URL)
		}
		if seen[ev.EvidID] {
			t.Fatalf("expected unique evid_id per URL, got duplicate %s", ev.EvidID)
		}
		seen[ev.EvidID] = true
	}
	if evidenceID("https://a.com") != evidenceID("https://a.com") {
		t.Fatal("expected evidenceID to be deterministic for the same URL")
	}
}

func TestTopKFallsBackToGeneralPoolWhenStanceSpecificEmpty(t *testing.T) {
	p := &Pipeline{Config: config.Config{Stage5Threshold: 0.5}}
	state := newTestState(pipelinestate.InputText, "claim")
	state.ScoredEvidence = []pipelinestate.ScoredEvidence{
		scoredEvidence("support-only", 0.8, 0.9, pipelinestate.StanceSupport),
	}

	if err := p.topK(context.Background(), state); err != nil {
		t.Fatalf("topK returned error: %v", err)
	}
	if len(state.EvidenceTopKSkeptic) == 0 {
		t.Fatal("expected skeptic pool to fall back to the general top-K pool")
	}
}
