// Command truthcheck runs the nine-stage claim-verification service:
// HTTP API (§6), pipeline runtime (C6/C7), and their backing stores.
// Grounded on the teacher's cmd/skipper/main.go wiring order (load env
// → connect DB → build logical clients → build orchestrator → mount
// routes → graceful-shutdown server), trimmed of the
// multi-service-mesh concerns (gRPC, Quartermaster bootstrap, MCP,
// social/heartbeat agents) that have no analog in a single verification
// service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"frameworks/truthcheck/internal/config"
	"frameworks/truthcheck/internal/httpapi"
	"frameworks/truthcheck/internal/llmclient"
	"frameworks/truthcheck/internal/logging"
	"frameworks/truthcheck/internal/observability"
	"frameworks/truthcheck/internal/pipeline"
	"frameworks/truthcheck/internal/prefetch"
	"frameworks/truthcheck/internal/retrieval"
	"frameworks/truthcheck/internal/scoring"
	"frameworks/truthcheck/internal/store"
	"frameworks/truthcheck/internal/websearch"
)

func main() {
	logger := logging.NewLoggerWithService("truthcheck")
	config.LoadEnv(logger)

	cfg := config.Load()
	logger.Info("starting truthcheck")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database connection")
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("failed to reach database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("invalid REDIS_URL; recent-trace ring will be process-local only")
		} else {
			redisClient = redis.NewClient(opts)
		}
	}

	embeddingClient, err := llmclient.NewEmbeddingClient(llmclient.Config{
		Provider: cfg.EmbeddingProvider,
		Model:    cfg.EmbeddingModel,
		APIKey:   cfg.EmbeddingAPIKey,
		APIURL:   cfg.EmbeddingAPIURL,
	})
	if err != nil {
		logger.WithError(err).Warn("embedding client unavailable; retrieval falls back to lexical/FTS only")
	}

	retrievalStore := retrieval.New(db, embeddingClient)

	dispatcher, err := websearch.NewDispatcher(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("web search dispatcher unavailable; S3 collect_web will no-op")
	}

	llmClients, err := llmclient.NewClients(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to build LLM clients")
	}

	var checkpointStore store.CheckpointStore
	switch cfg.CheckpointBackend {
	case "postgres":
		checkpointStore = store.NewSQLCheckpointStore(db)
	case "none":
		checkpointStore = nil
	default:
		checkpointStore = store.NewMemoryCheckpointStore()
	}
	if !cfg.CheckpointEnabled {
		checkpointStore = nil
	}

	analysisStore := store.NewAnalysisStore(db)
	recorder := observability.NewRecorder(redisClient)

	pl := &pipeline.Pipeline{
		Config:    cfg,
		Logger:    logger,
		Retrieval: retrievalStore,
		WebSearch: dispatcher,
		Prefetch:  prefetch.New(),
		LLM:       llmClients,
		Scoring: scoring.Config{
			LowOverlapThreshold: cfg.Stage4LowOverlapThreshold,
			RumorCapThreshold:   cfg.Stage5ThresholdRumor,
		},
		Checkpoint: checkpointStore,
		Analysis:   analysisStore,
		Recorder:   recorder,
	}

	handler := &httpapi.Handler{
		Pipeline:          pl,
		Retrieval:         retrievalStore,
		LLM:               llmClients,
		Logger:            logger,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpapi.RegisterRoutes(router, handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // ndjson streams run long
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("port", cfg.Port).Info("truthcheck listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}
