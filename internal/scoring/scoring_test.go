package scoring

import (
	"testing"

	"frameworks/truthcheck/internal/pipelinestate"
)

func defaultConfig() Config {
	return Config{LowOverlapThreshold: 0.4, RumorCapThreshold: 0.78}
}

func TestScoreAppliesSourcePriorAndTrust(t *testing.T) {
	candidates := []pipelinestate.EvidenceCandidate{
		{
			SourceType: pipelinestate.SourceNews,
			Content:    "wildfire spreads across northern hills overnight",
			Metadata:   pipelinestate.EvidenceMetadata{CredibilityScore: 0.8},
		},
	}
	scored, diag := Score(defaultConfig(), "wildfire spreads across northern hills", candidates)
	if len(scored) != 1 {
		t.Fatalf("expected 1 result, got %d", len(scored))
	}
	if scored[0].ScoreBreakdown.Prior != 1.1 {
		t.Fatalf("expected news prior 1.1, got %v", scored[0].ScoreBreakdown.Prior)
	}
	if scored[0].ScoreBreakdown.OverlapCapApplied {
		t.Fatalf("did not expect cap to apply for high overlap")
	}
	if diag.CandidateCount != 1 {
		t.Fatalf("unexpected candidate count %d", diag.CandidateCount)
	}
}

func TestScoreClampsToUnitRange(t *testing.T) {
	candidates := []pipelinestate.EvidenceCandidate{
		{
			SourceType: pipelinestate.SourceNews,
			Content:    "the exact same claim text repeated verbatim",
			Metadata: pipelinestate.EvidenceMetadata{
				CredibilityScore: 1.0,
				Intent:           "fact_check",
			},
		},
	}
	scored, _ := Score(defaultConfig(), "the exact same claim text repeated verbatim", candidates)
	if scored[0].Score > 1.0 {
		t.Fatalf("expected score clamped to 1.0, got %v", scored[0].Score)
	}
}

func TestScoreCapsLowOverlapCandidates(t *testing.T) {
	candidates := []pipelinestate.EvidenceCandidate{
		{
			SourceType: pipelinestate.SourceWebURL,
			Content:    "completely unrelated text about something else entirely",
			Metadata: pipelinestate.EvidenceMetadata{
				CredibilityScore: 1.0,
				Intent:           "fact_check",
			},
		},
	}
	scored, diag := Score(defaultConfig(), "the sky is blue today", candidates)
	if scored[0].ScoreBreakdown.Overlap >= 0.4 {
		t.Fatalf("expected low overlap, got %v", scored[0].ScoreBreakdown.Overlap)
	}
	if !scored[0].ScoreBreakdown.OverlapCapApplied {
		t.Fatal("expected overlap cap to be applied")
	}
	if scored[0].Score > 0.78 {
		t.Fatalf("expected score capped at 0.78, got %v", scored[0].Score)
	}
	if diag.OverlapCapAppliedCount != 1 {
		t.Fatalf("expected cap-applied count 1, got %d", diag.OverlapCapAppliedCount)
	}
}

func TestScoreSortsDescending(t *testing.T) {
	candidates := []pipelinestate.EvidenceCandidate{
		{SourceType: pipelinestate.SourceWebURL, Content: "barely related filler text", Metadata: pipelinestate.EvidenceMetadata{CredibilityScore: 0.5}},
		{SourceType: pipelinestate.SourceNews, Content: "storm makes landfall near the coast tonight", Metadata: pipelinestate.EvidenceMetadata{CredibilityScore: 0.9}},
	}
	scored, _ := Score(defaultConfig(), "storm makes landfall near the coast", candidates)
	if len(scored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(scored))
	}
	if scored[0].Score < scored[1].Score {
		t.Fatalf("expected descending order, got %v then %v", scored[0].Score, scored[1].Score)
	}
}

func TestScoreEmptyCandidates(t *testing.T) {
	scored, diag := Score(defaultConfig(), "claim text", nil)
	if len(scored) != 0 {
		t.Fatalf("expected no results, got %d", len(scored))
	}
	if diag.AverageScore != 0 {
		t.Fatalf("expected zero average for empty input, got %v", diag.AverageScore)
	}
}
