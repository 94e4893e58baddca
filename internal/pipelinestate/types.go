// Package pipelinestate defines the PipelineState and the evidence,
// verdict, and citation types that flow through the nine verification
// stages (SPEC_FULL.md §3).
package pipelinestate

import "time"

// Label is the final verdict label.
type Label string

const (
	LabelTrue       Label = "TRUE"
	LabelFalse      Label = "FALSE"
	LabelMixed      Label = "MIXED"
	LabelUnverified Label = "UNVERIFIED"
	LabelRefused    Label = "REFUSED"
)

// SourceType identifies where an EvidenceCandidate came from.
type SourceType string

const (
	SourceWiki   SourceType = "WIKI"
	SourceNews   SourceType = "NEWS"
	SourceWebURL SourceType = "WEB_URL"
	SourceKBDoc  SourceType = "KB_DOC"
)

// Stance is the role an evidence item, query, or draft verdict plays
// relative to the claim.
type Stance string

const (
	StanceSupport Stance = "support"
	StanceSkeptic Stance = "skeptic"
	StanceNeutral Stance = "neutral"

	StanceTrue       Stance = "TRUE"
	StanceFalse      Stance = "FALSE"
	StanceMixed      Stance = "MIXED"
	StanceUnverified Stance = "UNVERIFIED"
)

// InputType is the shape of the caller's input_payload.
type InputType string

const (
	InputURL   InputType = "url"
	InputText  InputType = "text"
	InputImage InputType = "image"
)

// ClaimMode classifies how the claim reads.
type ClaimMode string

const (
	ClaimModeFact  ClaimMode = "fact"
	ClaimModeRumor ClaimMode = "rumor"
	ClaimModeMixed ClaimMode = "mixed"
)

// OriginalIntent classifies why the caller submitted the claim.
type OriginalIntent string

const (
	IntentVerification OriginalIntent = "verification"
	IntentExploration  OriginalIntent = "exploration"
)

// Risk flags emitted by stages into FinalVerdict.RiskFlags.
const (
	RiskLowEvidence       = "LOW_EVIDENCE"
	RiskQualityGateFailed = "QUALITY_GATE_FAILED"
	RiskPrefetchFailed    = "PREFETCH_FAILED"
	RiskPersistenceFailed = "PERSISTENCE_FAILED"
	RiskJSONParseFailed   = "JSON_PARSE_FAILED"
)

// EvidenceMetadata carries the per-candidate signals used by scoring.
type EvidenceMetadata struct {
	Intent           string  `json:"intent,omitempty"`
	Stance           Stance  `json:"stance,omitempty"`
	ClaimID          string  `json:"claim_id,omitempty"`
	Mode             string  `json:"mode,omitempty"`
	CredibilityScore float64 `json:"credibility_score,omitempty"`
	SourceTier       string  `json:"source_tier,omitempty"`
	SourceTrustScore float64 `json:"source_trust_score,omitempty"`
	HTMLSignalScore  float64 `json:"html_signal_score,omitempty"`
	HTMLFetchOK      bool    `json:"html_fetch_ok,omitempty"`
	PublishedAt      string  `json:"published_at,omitempty"`
}

// EvidenceCandidate is a retrieved document or chunk before scoring.
type EvidenceCandidate struct {
	SourceType SourceType       `json:"source_type"`
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	Content    string           `json:"content"`
	Snippet    string           `json:"snippet"`
	Metadata   EvidenceMetadata `json:"metadata"`
}

// ScoreBreakdown records how ScoredEvidence.Score was derived (§4.5).
type ScoreBreakdown struct {
	Overlap           float64 `json:"overlap"`
	Prior             float64 `json:"prior"`
	Trust             float64 `json:"trust"`
	HTML              float64 `json:"html"`
	IntentBonus       float64 `json:"intent_bonus"`
	Stance            Stance  `json:"stance"`
	OverlapCapApplied bool    `json:"overlap_cap_applied"`
}

// ScoredEvidence extends EvidenceCandidate with a fused relevance
// score. EvidID is assigned once the candidate survives into
// evidence_topk (S5) and is what Citation.EvidID refers back to.
type ScoredEvidence struct {
	EvidenceCandidate
	Score          float64        `json:"score"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	EvidID         string         `json:"evid_id,omitempty"`
}

// Citation is the user-facing reference to a piece of evidence.
type Citation struct {
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Quote      string     `json:"quote"`
	Relevance  float64    `json:"relevance"`
	EvidID     string     `json:"evid_id"`
}

// DraftVerdict is a single-perspective (support or skeptic) evaluation.
type DraftVerdict struct {
	Stance             Stance     `json:"stance"`
	Confidence         float64    `json:"confidence"`
	ReasoningBullets   []string   `json:"reasoning_bullets"`
	Citations          []Citation `json:"citations"`
	WeakPoints         []string   `json:"weak_points"`
	FollowupQueries    []string   `json:"followup_queries"`
	InputPoolType      string     `json:"input_pool_type"`
	TotalEvidenceCount int        `json:"total_evidence_count"`
	InputPoolAvgTrust  float64    `json:"input_pool_avg_trust"`
}

// ModelInfo identifies which model produced the final verdict's summary.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Version  string `json:"version"`
}

// FinalVerdict is the S9 output and the caller-facing envelope.
type FinalVerdict struct {
	AnalysisID           string     `json:"analysis_id"`
	Label                Label      `json:"label"`
	Confidence           float64    `json:"confidence"`
	Summary              string     `json:"summary"`
	ModelInfo            ModelInfo  `json:"model_info"`
	LatencyMS            int64      `json:"latency_ms"`
	CostUSD              float64    `json:"cost_usd"`
	CreatedAt            time.Time  `json:"created_at"`
	Rationale            []string   `json:"rationale"`
	Citations            []Citation `json:"citations"`
	CounterEvidence      []string   `json:"counter_evidence"`
	Limitations          []string   `json:"limitations"`
	RecommendedNextSteps []string   `json:"recommended_next_steps"`
	RiskFlags            []string   `json:"risk_flags"`
	StageLogs            []string   `json:"stage_logs"`
	QualityScore         float64    `json:"quality_score"`
	QualityGateFailed    bool       `json:"quality_gate_failed"`
}

// QueryVariant is an S2 output: one planned retrieval query.
type QueryVariant struct {
	Type       string           `json:"type"` // wiki | news | web | verification | direct
	Text       string           `json:"text"`
	SearchMode string           `json:"search_mode,omitempty"`
	Meta       QueryVariantMeta `json:"meta"`
}

// QueryVariantMeta carries the routing/diagnostic fields for a query.
type QueryVariantMeta struct {
	ClaimID       string   `json:"claim_id"`
	Intent        string   `json:"intent"`
	Mode          string   `json:"mode"`
	Stance        Stance   `json:"stance"`
	QueryStrategy string   `json:"query_strategy"`
	KeywordTokens []string `json:"keyword_tokens"`
	AnchorTokens  []string `json:"anchor_tokens"`
	QualityFlags  []string `json:"quality_flags"`
}
