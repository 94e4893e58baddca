package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"frameworks/truthcheck/internal/llmclient"
	"frameworks/truthcheck/internal/logging"
	"frameworks/truthcheck/internal/pipeline"
	"frameworks/truthcheck/internal/pipelinestate"
	"frameworks/truthcheck/internal/retrieval"
)

// Handler wires the pipeline runtime and the retrieval store to the
// external interfaces named in §6.
type Handler struct {
	Pipeline  *pipeline.Pipeline
	Retrieval *retrieval.Store
	LLM       *llmclient.Clients
	Logger    logging.Logger

	HeartbeatInterval time.Duration
}

// RegisterRoutes mounts every §6 endpoint on router.
func RegisterRoutes(router gin.IRoutes, h *Handler) {
	router.POST("/truth/check", h.HandleCheck)
	router.POST("/api/truth/check/stream", h.HandleCheckStream)
	router.POST("/api/truth/check/stream-v2", h.HandleCheckStreamV2)
	router.POST("/api/wiki/search", h.HandleWikiSearch)
	router.POST("/api/wiki/keyword-search", h.HandleWikiKeywordSearch)
	router.POST("/api/rag/wiki/search", h.HandleRAGSearch)
	router.POST("/wiki/rag-stream", h.HandleRAGStream)
}

func bindTruthCheckRequest(c *gin.Context) (TruthCheckRequest, bool) {
	var req TruthCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return req, false
	}
	switch req.InputType {
	case "", string(pipelinestate.InputText):
		req.InputType = string(pipelinestate.InputText)
	case string(pipelinestate.InputURL), string(pipelinestate.InputImage):
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid input_type"})
		return req, false
	}
	if req.InputPayload == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "input_payload is required"})
		return req, false
	}
	if req.Language == "" {
		req.Language = "ko"
	}
	return req, true
}

func (req TruthCheckRequest) toRunRequest() pipeline.RunRequest {
	return pipeline.RunRequest{
		InputType:          pipelinestate.InputType(req.InputType),
		InputPayload:       req.InputPayload,
		Language:           req.Language,
		AsOf:               req.AsOf,
		NormalizeMode:      req.NormalizeMode,
		StartStage:         req.StartStage,
		EndStage:           req.EndStage,
		StageState:         req.StageState,
		CheckpointThreadID: req.CheckpointThreadID,
		CheckpointResume:   req.CheckpointResume,
	}
}

func toResponse(req TruthCheckRequest, outcome *pipeline.RunOutcome) TruthCheckResponse {
	v := outcome.State.FinalVerdict
	if v == nil {
		v = &pipelinestate.FinalVerdict{AnalysisID: outcome.State.AnalysisID, Label: pipelinestate.LabelUnverified}
	}
	resp := TruthCheckResponse{
		AnalysisID:           v.AnalysisID,
		Label:                v.Label,
		Confidence:           v.Confidence,
		Summary:              v.Summary,
		ModelInfo:            v.ModelInfo,
		LatencyMS:            v.LatencyMS,
		CostUSD:              v.CostUSD,
		CreatedAt:            v.CreatedAt,
		Rationale:            v.Rationale,
		Citations:            v.Citations,
		CounterEvidence:      v.CounterEvidence,
		Limitations:          v.Limitations,
		RecommendedNextSteps: v.RecommendedNextSteps,
		RiskFlags:            v.RiskFlags,
		StageLogs:            v.StageLogs,
		StageOutputs:         outcome.State.StageOutputs,
		CheckpointThreadID:   outcome.State.CheckpointThreadID,
		CheckpointResumed:    outcome.CheckpointResumed,
		CheckpointExpired:    outcome.CheckpointExpired,
	}
	if req.IncludeFullOutputs {
		resp.StageFullOutputs = outcome.State.StageFullOutputs
	}
	return resp
}

// HandleCheck is the synchronous POST /truth/check endpoint (§6).
func (h *Handler) HandleCheck(c *gin.Context) {
	if h == nil || h.Pipeline == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline unavailable"})
		return
	}
	req, ok := bindTruthCheckRequest(c)
	if !ok {
		return
	}

	outcome, err := h.Pipeline.Run(c.Request.Context(), req.toRunRequest())
	if err != nil {
		h.Logger.WithError(err).Warn("truth check pipeline failed")
		c.JSON(http.StatusInternalServerError, pipelineExecutionFailed(err))
		return
	}

	c.JSON(http.StatusOK, toResponse(req, outcome))
}

// ndjsonWriter writes one JSON object per line and flushes after each,
// the streaming counterpart to the teacher's SSE sseStreamer.
type ndjsonWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newNDJSONWriter(c *gin.Context) (*ndjsonWriter, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unavailable"})
		return nil, false
	}
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &ndjsonWriter{writer: c.Writer, flusher: flusher}, true
}

func (w *ndjsonWriter) send(env streamEnvelope) {
	data, err := jsonMarshalLine(env)
	if err != nil {
		return
	}
	_, _ = w.writer.Write(data)
	w.flusher.Flush()
}

// HandleCheckStream is POST /api/truth/check/stream (§6): ndjson,
// one stage_complete line per stage plus a terminal complete/error line.
func (h *Handler) HandleCheckStream(c *gin.Context) {
	if h == nil || h.Pipeline == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline unavailable"})
		return
	}
	req, ok := bindTruthCheckRequest(c)
	if !ok {
		return
	}
	w, ok := newNDJSONWriter(c)
	if !ok {
		return
	}

	runReq := req.toRunRequest()
	runReq.OnStageComplete = func(stage string, state *pipelinestate.State, stageErr error) {
		event := "stage_complete"
		var data any = state.StageOutputs[stage]
		if stageErr != nil {
			event = "error"
			data = gin.H{"stage": stage, "message": stageErr.Error()}
		}
		w.send(streamEnvelope{Event: event, Stage: stage, Data: data, TraceID: state.TraceID, TS: time.Now()})
	}

	outcome, err := h.Pipeline.Run(c.Request.Context(), runReq)
	if err != nil {
		w.send(streamEnvelope{Event: "error", Data: gin.H{"message": err.Error()}, TS: time.Now()})
		return
	}

	w.send(streamEnvelope{
		Event:   "complete",
		Data:    toResponse(req, outcome),
		TraceID: outcome.State.TraceID,
		TS:      time.Now(),
	})
}

// HandleCheckStreamV2 is POST /api/truth/check/stream-v2 (§6): same as
// HandleCheckStream plus a leading stream_open event and periodic
// heartbeats while no stage has completed yet.
func (h *Handler) HandleCheckStreamV2(c *gin.Context) {
	if h == nil || h.Pipeline == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline unavailable"})
		return
	}
	req, ok := bindTruthCheckRequest(c)
	if !ok {
		return
	}
	w, ok := newNDJSONWriter(c)
	if !ok {
		return
	}

	traceID := req.CheckpointThreadID
	w.send(streamEnvelope{Event: "stream_open", TraceID: traceID, TS: time.Now()})

	interval := h.HeartbeatInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	stageSeen := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sawStage := false
		for {
			select {
			case <-done:
				return
			case <-stageSeen:
				sawStage = true
			case <-ticker.C:
				if !sawStage {
					w.send(streamEnvelope{Event: "heartbeat", TraceID: traceID, TS: time.Now()})
				}
			}
		}
	}()

	runReq := req.toRunRequest()
	runReq.OnStageComplete = func(stage string, state *pipelinestate.State, stageErr error) {
		select {
		case stageSeen <- struct{}{}:
		default:
		}
		event := "stage_complete"
		var data any = state.StageOutputs[stage]
		if stageErr != nil {
			event = "error"
			data = gin.H{"stage": stage, "message": stageErr.Error()}
		}
		w.send(streamEnvelope{Event: event, Stage: stage, Data: data, TraceID: state.TraceID, TS: time.Now()})
	}

	outcome, err := h.Pipeline.Run(c.Request.Context(), runReq)
	if err != nil {
		w.send(streamEnvelope{Event: "error", Data: gin.H{"message": err.Error()}, TraceID: traceID, TS: time.Now()})
		return
	}

	w.send(streamEnvelope{
		Event:   "complete",
		Data:    toResponse(req, outcome),
		TraceID: outcome.State.TraceID,
		TS:      time.Now(),
	})
}

var errRetrievalUnavailable = errors.New("retrieval store unavailable")

func (h *Handler) runSearch(c *gin.Context, mode retrieval.Mode) {
	var req WikiSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if h.Retrieval == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errRetrievalUnavailable.Error()})
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 6
	}
	result, err := h.Retrieval.Search(c.Request.Context(), retrieval.Request{
		Question: req.Question,
		TopK:     topK,
		PageIDs:  req.PageIDs,
		Window:   req.Window,
		MaxChars: req.MaxChars,
		Mode:     mode,
	})
	if err != nil {
		h.Logger.WithError(err).Warn("wiki search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": result.Hits, "prompt_context": result.PromptContext})
}

// HandleWikiSearch is POST /api/wiki/search: semantic (vector/auto) mode.
func (h *Handler) HandleWikiSearch(c *gin.Context) {
	h.runSearch(c, retrieval.ModeAuto)
}

// HandleWikiKeywordSearch is POST /api/wiki/keyword-search: forces
// lexical/FTS scoring instead of vector similarity.
func (h *Handler) HandleWikiKeywordSearch(c *gin.Context) {
	h.runSearch(c, retrieval.ModeFTS)
}

const ragSystemPrompt = `Answer the user's question using ONLY the provided context. If the
context does not contain the answer, say so plainly.`

func (h *Handler) ragAnswer(ctx *gin.Context, question, promptContext string) (string, error) {
	if h.LLM == nil || h.LLM.Evaluator == nil {
		return "", errors.New("generation client unavailable")
	}
	user := "Context:\n" + promptContext + "\n\nQuestion: " + question
	return h.LLM.Evaluator.Call(ctx.Request.Context(), ragSystemPrompt, user, 768, 0.3)
}

// HandleRAGSearch is POST /api/rag/wiki/search: retrieval context plus
// a synthesized answer, returned as a single JSON object.
func (h *Handler) HandleRAGSearch(c *gin.Context) {
	var req RAGSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if h.Retrieval == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errRetrievalUnavailable.Error()})
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 6
	}
	result, err := h.Retrieval.Search(c.Request.Context(), retrieval.Request{
		Question: req.Question,
		TopK:     topK,
		PageIDs:  req.PageIDs,
		Window:   req.Window,
		MaxChars: req.MaxChars,
		Mode:     retrieval.ModeAuto,
	})
	if err != nil {
		h.Logger.WithError(err).Warn("rag search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	answer, err := h.ragAnswer(c, req.Question, result.PromptContext)
	if err != nil {
		h.Logger.WithError(err).Warn("rag generation failed")
		c.JSON(http.StatusOK, gin.H{"hits": result.Hits, "prompt_context": result.PromptContext, "answer": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": result.Hits, "prompt_context": result.PromptContext, "answer": answer})
}

// HandleRAGStream is POST /wiki/rag-stream: retrieves context and emits
// it as a "context" event carrying the hits, then emits the synthesized
// answer whole in a terminal "complete" event (or an "error" event on
// failure). The answer is not streamed token by token; the events are
// ndjson-framed for client symmetry with the truth-check streams.
func (h *Handler) HandleRAGStream(c *gin.Context) {
	var req RAGSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	w, ok := newNDJSONWriter(c)
	if !ok {
		return
	}
	if h.Retrieval == nil {
		w.send(streamEnvelope{Event: "error", Data: gin.H{"message": errRetrievalUnavailable.Error()}, TS: time.Now()})
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 6
	}
	result, err := h.Retrieval.Search(c.Request.Context(), retrieval.Request{
		Question: req.Question,
		TopK:     topK,
		PageIDs:  req.PageIDs,
		Window:   req.Window,
		MaxChars: req.MaxChars,
		Mode:     retrieval.ModeAuto,
	})
	if err != nil {
		w.send(streamEnvelope{Event: "error", Data: gin.H{"message": "search failed"}, TS: time.Now()})
		return
	}
	w.send(streamEnvelope{Event: "context", Data: gin.H{"hits": result.Hits}, TS: time.Now()})

	answer, err := h.ragAnswer(c, req.Question, result.PromptContext)
	if err != nil {
		w.send(streamEnvelope{Event: "error", Data: gin.H{"message": "generation failed"}, TS: time.Now()})
		return
	}
	w.send(streamEnvelope{Event: "complete", Data: gin.H{"answer": answer}, TS: time.Now()})
}
