package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"frameworks/truthcheck/internal/pipelinestate"
)

// AnalysisStore persists completed FinalVerdicts keyed by analysis_id.
type AnalysisStore struct {
	db *sql.DB
}

// NewAnalysisStore wraps an existing *sql.DB.
func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// Save persists a verdict and returns an error on failure. Nothing in
// the service calls it: verdicts are not persisted, and
// RiskPersistenceFailed is never set on a response.
func (s *AnalysisStore) Save(ctx context.Context, v *pipelinestate.FinalVerdict) error {
	if s == nil || s.db == nil {
		return errors.New("analysis store unavailable")
	}
	if v.AnalysisID == "" {
		return errors.New("analysis id is required")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode final verdict: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO truthcheck.analysis_results (analysis_id, label, confidence, verdict_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (analysis_id) DO UPDATE SET
			label = EXCLUDED.label,
			confidence = EXCLUDED.confidence,
			verdict_json = EXCLUDED.verdict_json
	`, v.AnalysisID, string(v.Label), v.Confidence, payload, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// Get loads a previously persisted verdict by analysis_id.
func (s *AnalysisStore) Get(ctx context.Context, analysisID string) (*pipelinestate.FinalVerdict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT verdict_json FROM truthcheck.analysis_results WHERE analysis_id = $1
	`, analysisID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("analysis %s not found", analysisID)
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	var verdict pipelinestate.FinalVerdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &verdict, nil
}
