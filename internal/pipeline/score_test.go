package pipeline

import (
	"context"
	"testing"

	"frameworks/truthcheck/internal/pipelinestate"
	"frameworks/truthcheck/internal/scoring"
)

func TestScoreWrapsEvidenceAndClearsCandidates(t *testing.T) {
	p := &Pipeline{Scoring: scoring.Config{LowOverlapThreshold: 0.4, RumorCapThreshold: 0.78}}
	state := newTestState(pipelinestate.InputText, "the sky is blue")
	state.ClaimText = "the sky is blue"
	state.EvidenceCandidates = []pipelinestate.EvidenceCandidate{
		{SourceType: pipelinestate.SourceWebURL, Content: "the sky is blue today", Metadata: pipelinestate.EvidenceMetadata{CredibilityScore: 0.8}},
	}

	if err := p.score(context.Background(), state); err != nil {
		t.Fatalf("score returned error: %v", err)
	}
	if state.EvidenceCandidates != nil {
		t.Fatal("expected EvidenceCandidates to be cleared after scoring")
	}
	if len(state.ScoredEvidence) != 1 {
		t.Fatalf("expected 1 scored evidence item, got %d", len(state.ScoredEvidence))
	}
	if state.ScoreDiagnostics["candidate_count"] != 1 {
		t.Fatalf("expected candidate_count diagnostic of 1, got %v", state.ScoreDiagnostics["candidate_count"])
	}
}
