// Package config loads the verification pipeline's environment
// configuration, mirroring the env-var surface named in SPEC_FULL.md §6.
package config

import "time"

// Config holds every tunable the pipeline and its HTTP surface read at
// startup. Stage-level defaults (thresholds, caps) live alongside the
// stage that owns them but are still sourced from here so the whole
// surface is visible in one place.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// LLM clients (C4). The LLM* fields configure the provider used by
	// the querygen (also used for LLM-mode normalize), evaluator and
	// judge clients; the Judge* fields default to the LLM* values and
	// give the judge its own provider where one of them differs.
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMAPIURL   string
	LLMFallback string // secondary endpoint URL, tried on connection failure
	JudgeModel  string
	JudgeAPIURL string
	JudgeAPIKey string

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingAPIURL     string
	EmbeddingDimensions int
	EmbedNDigits        int

	// C2 external search. Providers are enabled by presence of their
	// credentials; NaverMaxConcurrency/DDGMaxConcurrency size the gate
	// for the first and second configured provider respectively (the
	// env var names are inherited from the upstream spec's example
	// provider pair), any further provider defaults to a gate of 3.
	SearchProvider        string
	SearchAPIKey          string
	SearchAPIURL          string
	BraveAPIKey           string
	BraveAPIURL           string
	TavilyAPIKey          string
	TavilyAPIURL          string
	SearxngAPIURL         string
	NaverMaxConcurrency   int
	DDGMaxConcurrency     int
	ExternalAPITimeout    time.Duration
	ExternalRetryAttempts int
	ExternalBackoffBase   time.Duration

	// Checkpointing (C7).
	CheckpointEnabled bool
	CheckpointBackend string // memory | postgres | none
	CheckpointTTL     time.Duration

	// Scoring (C5) / TopK (S5).
	Stage4LowOverlapThreshold float64
	Stage5Threshold           float64
	Stage5ThresholdRumor      float64
	Stage3WebQueryCapPerClaim int
	Stage3HTMLSignalEnabled   bool
	Stage3HTMLSignalTopN      int

	// Quality gate (S9).
	Stage9QualityCutoff float64

	// Streaming.
	HeartbeatInterval time.Duration

	Language string
}

// Load reads the service configuration from the process environment.
func Load() Config {
	return Config{
		Port:        GetEnv("PORT", "8080"),
		DatabaseURL: RequireEnv("DATABASE_URL"),
		RedisURL:    GetEnv("REDIS_URL", ""),

		LLMProvider: GetEnv("LLM_PROVIDER", "openai"),
		LLMModel:    GetEnv("LLM_MODEL", ""),
		LLMAPIKey:   GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:   GetEnv("LLM_API_URL", ""),
		LLMFallback: GetEnv("LLM_FALLBACK_API_URL", ""),
		JudgeModel:  GetEnv("JUDGE_LLM_MODEL", GetEnv("LLM_MODEL", "")),
		JudgeAPIURL: GetEnv("JUDGE_LLM_API_URL", GetEnv("LLM_API_URL", "")),
		JudgeAPIKey: GetEnv("JUDGE_LLM_API_KEY", GetEnv("LLM_API_KEY", "")),

		EmbeddingProvider:   GetEnv("EMBEDDING_PROVIDER", GetEnv("LLM_PROVIDER", "openai")),
		EmbeddingModel:      GetEnv("EMBEDDING_MODEL", GetEnv("LLM_MODEL", "")),
		EmbeddingAPIKey:     GetEnv("EMBEDDING_API_KEY", GetEnv("LLM_API_KEY", "")),
		EmbeddingAPIURL:     GetEnv("EMBEDDING_API_URL", GetEnv("LLM_API_URL", "")),
		EmbeddingDimensions: GetEnvInt("EMBED_DIM", 1536),
		EmbedNDigits:        GetEnvInt("EMBED_NDIGITS", 6),

		SearchProvider:        GetEnv("SEARCH_PROVIDER", "brave"),
		SearchAPIKey:          GetEnv("SEARCH_API_KEY", ""),
		SearchAPIURL:          GetEnv("SEARCH_API_URL", ""),
		BraveAPIKey:           GetEnv("BRAVE_API_KEY", ""),
		BraveAPIURL:           GetEnv("BRAVE_API_URL", ""),
		TavilyAPIKey:          GetEnv("TAVILY_API_KEY", ""),
		TavilyAPIURL:          GetEnv("TAVILY_API_URL", ""),
		SearxngAPIURL:         GetEnv("SEARXNG_API_URL", ""),
		NaverMaxConcurrency:   GetEnvInt("NAVER_MAX_CONCURRENCY", 3),
		DDGMaxConcurrency:     GetEnvInt("DDG_MAX_CONCURRENCY", 3),
		ExternalAPITimeout:    seconds("EXTERNAL_API_TIMEOUT_SECONDS", 10),
		ExternalRetryAttempts: GetEnvInt("EXTERNAL_API_RETRY_ATTEMPTS", 3),
		ExternalBackoffBase:   secondsFloat("EXTERNAL_API_BACKOFF_SECONDS", 0.4),

		CheckpointEnabled: GetEnvBool("CHECKPOINT_ENABLED", true),
		CheckpointBackend: GetEnv("CHECKPOINT_BACKEND", "memory"),
		CheckpointTTL:     seconds("CHECKPOINT_TTL_SECONDS", 86400),

		Stage4LowOverlapThreshold: GetEnvFloat("STAGE4_LOW_OVERLAP_THRESHOLD", 0.4),
		Stage5Threshold:           GetEnvFloat("STAGE5_THRESHOLD", 0.70),
		Stage5ThresholdRumor:      GetEnvFloat("STAGE5_THRESHOLD_RUMOR", 0.78),
		Stage3WebQueryCapPerClaim: GetEnvInt("STAGE3_WEB_QUERY_CAP_PER_CLAIM", 3),
		Stage3HTMLSignalEnabled:   GetEnvBool("STAGE3_HTML_SIGNAL_ENABLED", true),
		Stage3HTMLSignalTopN:      GetEnvInt("STAGE3_HTML_SIGNAL_TOP_N", 5),

		Stage9QualityCutoff: GetEnvFloat("STAGE9_QUALITY_CUTOFF", 65),

		HeartbeatInterval: seconds("STREAM_HEARTBEAT_INTERVAL_SECONDS", 5),

		Language: GetEnv("DEFAULT_LANGUAGE", "ko"),
	}
}

func seconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(GetEnvInt(key, defaultSeconds)) * time.Second
}

func secondsFloat(key string, defaultSeconds float64) time.Duration {
	return time.Duration(GetEnvFloat(key, defaultSeconds) * float64(time.Second))
}
