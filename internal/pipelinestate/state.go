package pipelinestate

import "time"

// State is the single mutable record that flows through the nine
// verification stages (SPEC_FULL.md §3). Stages write additively: each
// stage reads a subset of fields and writes a disjoint subset, plus
// appending to StageLogs and the StageOutputs/StageFullOutputs maps.
//
// TraceID is set once at construction and never mutated afterward.
type State struct {
	TraceID            string
	CheckpointThreadID string
	AnalysisID         string

	InputType     InputType
	InputPayload  string
	Language      string
	AsOf          string
	NormalizeMode string // "basic" (default) or "llm"

	// S1 Normalize outputs.
	ClaimText            string
	OriginalIntent       OriginalIntent
	ClaimMode            ClaimMode
	VerificationPriority string
	EntityMap            map[string]string
	RiskMarkers          []string
	CanonicalEvidence    []string

	// S2 Querygen output.
	QueryVariants []QueryVariant

	// S3 Collect output (cleared after S4 consumes it).
	EvidenceCandidates []EvidenceCandidate
	Stage03MergeStats  map[string]any

	// S4 Score output.
	ScoredEvidence   []ScoredEvidence
	ScoreDiagnostics map[string]any

	// S5 TopK outputs.
	EvidenceTopK        []ScoredEvidence
	EvidenceTopKSupport []ScoredEvidence
	EvidenceTopKSkeptic []ScoredEvidence

	// S6/S7 outputs.
	VerdictSupport *DraftVerdict
	VerdictSkeptic *DraftVerdict

	// S8 output.
	DraftVerdict  *DraftVerdict
	QualityScore  float64
	SupportPack   []ScoredEvidence
	SkepticPack   []ScoredEvidence
	EvidenceIndex map[string]ScoredEvidence

	// S9 output.
	FinalVerdict *FinalVerdict

	// Shared bookkeeping, appended to by every stage.
	StageLogs        []string
	StageOutputs     map[string]any
	StageFullOutputs map[string]any

	StartedAt time.Time
}

// New constructs a fresh PipelineState for a request. traceID must be
// non-empty and is never mutated afterward.
func New(traceID string, input InputType, payload, language string) *State {
	return &State{
		TraceID:          traceID,
		InputType:        input,
		InputPayload:     payload,
		Language:         language,
		EntityMap:        map[string]string{},
		StageOutputs:     map[string]any{},
		StageFullOutputs: map[string]any{},
		StartedAt:        time.Now(),
	}
}

// LogStage appends an ordered stage-completion entry and records its
// output under both StageOutputs (summary) and StageFullOutputs (full).
func (s *State) LogStage(stage string, summary, full any) {
	s.StageLogs = append(s.StageLogs, stage)
	if s.StageOutputs == nil {
		s.StageOutputs = map[string]any{}
	}
	s.StageOutputs[stage] = summary
	if s.StageFullOutputs == nil {
		s.StageFullOutputs = map[string]any{}
	}
	s.StageFullOutputs[stage] = full
}

// AddRiskFlag appends a risk marker if not already present.
func (s *State) AddRiskFlag(flag string) {
	for _, existing := range s.RiskMarkers {
		if existing == flag {
			return
		}
	}
	s.RiskMarkers = append(s.RiskMarkers, flag)
}

// HasStage reports whether a stage has already logged completion,
// which is how the resume path (start_stage/end_stage) decides
// whether a stage may be skipped: a stage may be skipped only if its
// required inputs are already present.
func (s *State) HasStage(stage string) bool {
	_, ok := s.StageOutputs[stage]
	return ok
}
