// Package pipeline implements C6/C7: the nine-stage claim-verification
// graph and its runtime (checkpointing, cancellation, soft timeouts,
// the S3 internal fan-out, and the S6/S7 parallel join). Grounded on
// the teacher's internal/chat/orchestrator.go (tool-calling round trip,
// generalized here into sequential stage dispatch with a resume
// window) and internal/chat/hyde.go / query_rewriter.go (query
// generation shape, generalized into S2's multi-variant querygen).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"frameworks/truthcheck/internal/config"
	"frameworks/truthcheck/internal/llmclient"
	"frameworks/truthcheck/internal/logging"
	"frameworks/truthcheck/internal/observability"
	"frameworks/truthcheck/internal/pipelinestate"
	"frameworks/truthcheck/internal/prefetch"
	"frameworks/truthcheck/internal/retrieval"
	"frameworks/truthcheck/internal/scoring"
	"frameworks/truthcheck/internal/store"
	"frameworks/truthcheck/internal/websearch"
)

// Stage names, matching spec.md §4.6/§8's literal identifiers. S3's
// three sub-nodes are individually named since start_stage/end_stage
// addresses them (stage03_collect is a start→stage03_wiki /
// end→stage03_merge alias, resolved in resolveStageWindow).
const (
	StageNormalize = "stage1_normalize"
	StageQuerygen  = "stage2_querygen"
	StageWiki      = "stage03_wiki"
	StageWeb       = "stage03_web"
	StageMerge     = "stage03_merge"
	StageScore     = "stage4_score"
	StageTopK      = "stage5_topk"
	StageSupport   = "stage6_support"
	StageSkeptic   = "stage7_skeptic"
	StageAggregate = "stage8_aggregate"
	StageJudge     = "stage9_judge"
)

// stageOrder is the DAG's linear execution order; S3 is flattened to
// its three sub-nodes since the resume window addresses them
// individually, and S6/S7 are adjacent entries that Run executes as
// one parallel join rather than two sequential steps.
var stageOrder = []string{
	StageNormalize, StageQuerygen, StageWiki, StageWeb, StageMerge,
	StageScore, StageTopK, StageSupport, StageSkeptic, StageAggregate, StageJudge,
}

// Pipeline bundles every dependency a stage needs. Built once at
// service startup and shared across requests; stages must not mutate
// Pipeline, only the *pipelinestate.State passed to Run.
type Pipeline struct {
	Config     config.Config
	Logger     logging.Logger
	Retrieval  *retrieval.Store
	WebSearch  *websearch.Dispatcher
	Prefetch   *prefetch.Prefetcher
	LLM        *llmclient.Clients
	Scoring    scoring.Config
	Checkpoint store.CheckpointStore
	Analysis   *store.AnalysisStore
	Recorder   *observability.Recorder
}

// RunRequest is the orchestrator-level input, mapping directly to
// §6's TruthCheckRequest fields that affect pipeline execution (the
// HTTP-only fields — include_full_outputs et al. — are handled by
// internal/httpapi and not passed through here).
type RunRequest struct {
	InputType     pipelinestate.InputType
	InputPayload  string
	Language      string
	AsOf          string
	NormalizeMode string

	StartStage string
	EndStage   string

	StageState *pipelinestate.State // prior state to resume into, if any

	CheckpointThreadID string
	CheckpointResume   bool

	// OnStageComplete, if set, is invoked synchronously after every
	// stage attempt (success or best-effort failure); internal/httpapi
	// uses it to emit ndjson stage_complete events without Run needing
	// to know anything about the transport.
	OnStageComplete func(stage string, state *pipelinestate.State, stageErr error)
}

// RunOutcome wraps the resulting state plus the two resume-related
// response flags §6 names.
type RunOutcome struct {
	State             *pipelinestate.State
	CheckpointResumed bool
	CheckpointExpired bool
}

const defaultStageSoftTimeout = 120 * time.Second

// Run executes the stage graph from req.StartStage (or the beginning)
// through req.EndStage (or the end), honoring checkpoint
// resume/persist and per-stage soft timeouts. A stage may be skipped
// only if the resume window starts after it AND its required state is
// already present (§4.6's resume contract).
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	state, outcome, err := p.resolveStartingState(ctx, req)
	if err != nil {
		return nil, err
	}

	start, end, err := resolveStageWindow(req.StartStage, req.EndStage)
	if err != nil {
		return nil, fmt.Errorf("resolve stage window: %w", err)
	}

	for i, stage := range stageOrder {
		if i > end {
			continue
		}
		if i < start && state.HasStage(stage) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline cancelled before %s: %w", stage, err)
		}

		stageCtx, cancel := context.WithTimeout(ctx, defaultStageSoftTimeout)
		stageStart := time.Now()
		stageErr := p.runStage(stageCtx, stage, state)
		cancel()

		status := "success"
		if stageErr != nil {
			status = "error"
		}
		if p.Recorder != nil {
			p.Recorder.RecordStage(ctx, state.TraceID, stage, status, time.Since(stageStart))
		}
		if stageErr != nil {
			if stage == StageNormalize {
				if req.OnStageComplete != nil {
					req.OnStageComplete(stage, state, stageErr)
				}
				return nil, fmt.Errorf("stage %s failed terminally: %w", stage, stageErr)
			}
			p.Logger.WithFields(logging.Fields{"stage": stage, "trace_id": state.TraceID}).
				WithError(stageErr).Warn("stage failed; continuing best-effort")
		}

		if p.Checkpoint != nil && req.CheckpointThreadID != "" {
			if err := p.Checkpoint.Put(ctx, store.CheckpointRecord{
				ThreadID: req.CheckpointThreadID,
				Stage:    stage,
				State:    state,
			}); err != nil {
				p.Logger.WithError(err).Warn("checkpoint write failed")
			}
		}

		if req.OnStageComplete != nil {
			req.OnStageComplete(stage, state, stageErr)
		}

		// S1 may refuse the claim outright (empty claim_text): that sets
		// FinalVerdict without touching any later stage's inputs, so stop
		// here and report it as a normal, successful outcome rather than
		// running S2-S9 against a claim that was never resolved.
		if stage == StageNormalize && state.FinalVerdict != nil {
			return &RunOutcome{State: state, CheckpointResumed: outcome.CheckpointResumed, CheckpointExpired: outcome.CheckpointExpired}, nil
		}
	}

	return &RunOutcome{State: state, CheckpointResumed: outcome.CheckpointResumed, CheckpointExpired: outcome.CheckpointExpired}, nil
}

func (p *Pipeline) resolveStartingState(ctx context.Context, req RunRequest) (*pipelinestate.State, RunOutcome, error) {
	if req.CheckpointResume && req.CheckpointThreadID != "" && p.Checkpoint != nil {
		rec, err := p.Checkpoint.Get(ctx, req.CheckpointThreadID, p.Config.CheckpointTTL)
		switch {
		case err == nil:
			return rec.State, RunOutcome{CheckpointResumed: true}, nil
		case err == store.ErrCheckpointExpired:
			return newState(req), RunOutcome{CheckpointExpired: true}, nil
		case err == store.ErrCheckpointAbsent:
			return newState(req), RunOutcome{}, nil
		default:
			return nil, RunOutcome{}, fmt.Errorf("load checkpoint: %w", err)
		}
	}
	if req.StageState != nil {
		return req.StageState, RunOutcome{}, nil
	}
	return newState(req), RunOutcome{}, nil
}

func newState(req RunRequest) *pipelinestate.State {
	traceID := req.CheckpointThreadID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	language := req.Language
	if language == "" {
		language = "ko"
	}
	st := pipelinestate.New(traceID, req.InputType, req.InputPayload, language)
	st.AsOf = req.AsOf
	st.CheckpointThreadID = req.CheckpointThreadID
	st.AnalysisID = uuid.NewString()
	st.NormalizeMode = defaultString(req.NormalizeMode, "basic")
	return st
}

func (p *Pipeline) runStage(ctx context.Context, stage string, state *pipelinestate.State) error {
	switch stage {
	case StageNormalize:
		return p.normalize(ctx, state)
	case StageQuerygen:
		return p.querygen(ctx, state)
	case StageWiki:
		return p.collectWiki(ctx, state)
	case StageWeb:
		return p.collectWeb(ctx, state)
	case StageMerge:
		return p.collectMerge(ctx, state)
	case StageScore:
		return p.score(ctx, state)
	case StageTopK:
		return p.topK(ctx, state)
	case StageSupport, StageSkeptic:
		return p.evaluateBoth(ctx, state)
	case StageAggregate:
		return p.aggregate(ctx, state)
	case StageJudge:
		return p.judge(ctx, state)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// resolveStageWindow maps the caller's start_stage/end_stage names
// (including the stage03_collect alias) to indices into stageOrder.
func resolveStageWindow(startName, endName string) (start, end int, err error) {
	start = 0
	end = len(stageOrder) - 1

	if startName == "stage03_collect" {
		startName = StageWiki
	}
	if endName == "stage03_collect" {
		endName = StageMerge
	}

	if startName != "" {
		idx := indexOfStage(startName)
		if idx < 0 {
			return 0, 0, fmt.Errorf("unknown start_stage %q", startName)
		}
		start = idx
	}
	if endName != "" {
		idx := indexOfStage(endName)
		if idx < 0 {
			return 0, 0, fmt.Errorf("unknown end_stage %q", endName)
		}
		end = idx
	}
	if start > end {
		return 0, 0, fmt.Errorf("start_stage %q occurs after end_stage %q", startName, endName)
	}
	return start, end, nil
}

func indexOfStage(name string) int {
	for i, s := range stageOrder {
		if s == name {
			return i
		}
	}
	return -1
}
