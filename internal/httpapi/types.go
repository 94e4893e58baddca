// Package httpapi implements the external interfaces of SPEC_FULL.md
// §6: the synchronous and ndjson-streaming truth-check endpoints plus
// the retrieval/RAG passthrough endpoints. Grounded on the teacher's
// internal/chat/handler.go (gin handler shape, validation-then-stream
// structure, SSE streamer pattern generalized here to ndjson).
package httpapi

import (
	"time"

	"frameworks/truthcheck/internal/pipelinestate"
)

// TruthCheckRequest is §6's TruthCheckRequest.
type TruthCheckRequest struct {
	InputType    string `json:"input_type"`
	InputPayload string `json:"input_payload"`
	Language     string `json:"language"`
	AsOf         string `json:"as_of"`

	StartStage string `json:"start_stage"`
	EndStage   string `json:"end_stage"`

	NormalizeMode string `json:"normalize_mode"`

	StageState *pipelinestate.State `json:"stage_state"`

	IncludeFullOutputs bool `json:"include_full_outputs"`

	CheckpointThreadID string `json:"checkpoint_thread_id"`
	CheckpointResume   bool   `json:"checkpoint_resume"`
}

// TruthCheckResponse is §6's TruthCheckResponse.
type TruthCheckResponse struct {
	AnalysisID string              `json:"analysis_id"`
	Label      pipelinestate.Label `json:"label"`
	Confidence float64             `json:"confidence"`
	Summary    string              `json:"summary"`

	ModelInfo pipelinestate.ModelInfo `json:"model_info"`
	LatencyMS int64                   `json:"latency_ms"`
	CostUSD   float64                 `json:"cost_usd"`
	CreatedAt time.Time               `json:"created_at"`

	Rationale            []string                 `json:"rationale"`
	Citations            []pipelinestate.Citation `json:"citations"`
	CounterEvidence      []string                 `json:"counter_evidence"`
	Limitations          []string                 `json:"limitations"`
	RecommendedNextSteps []string                 `json:"recommended_next_steps"`
	RiskFlags            []string                 `json:"risk_flags"`
	StageLogs            []string                 `json:"stage_logs"`

	StageOutputs     map[string]any `json:"stage_outputs"`
	StageFullOutputs map[string]any `json:"stage_full_outputs,omitempty"`

	CheckpointThreadID string `json:"checkpoint_thread_id,omitempty"`
	CheckpointResumed  bool   `json:"checkpoint_resumed,omitempty"`
	CheckpointExpired  bool   `json:"checkpoint_expired,omitempty"`
}

// errorDetail is §7's pipeline-failure error envelope body.
type errorDetail struct {
	Detail errorDetailBody `json:"detail"`
}

type errorDetailBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func pipelineExecutionFailed(err error) errorDetail {
	return errorDetail{Detail: errorDetailBody{Code: "PIPELINE_EXECUTION_FAILED", Message: err.Error()}}
}

// streamEnvelope is the single-line ndjson shape shared by both
// streaming endpoints: one JSON object per line, newline-delimited.
type streamEnvelope struct {
	Event   string    `json:"event"`
	Stage   string    `json:"stage,omitempty"`
	Data    any       `json:"data,omitempty"`
	TraceID string    `json:"trace_id"`
	TS      time.Time `json:"ts"`
}

// WikiSearchRequest is the shared request shape for the two retrieval
// passthrough endpoints.
type WikiSearchRequest struct {
	Question string   `json:"question" binding:"required"`
	TopK     int      `json:"top_k"`
	PageIDs  []string `json:"page_ids"`
	Window   int      `json:"window"`
	MaxChars int      `json:"max_chars"`
}

// RAGSearchRequest additionally asks for a synthesized answer over the
// retrieved context.
type RAGSearchRequest struct {
	WikiSearchRequest
	Stream bool `json:"stream"`
}
