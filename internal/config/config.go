// Package config provides configuration loading for ragd.
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/telemetry"
)

// Config is the root configuration for the retrieval and reasoning core.
type Config struct {
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Fusion     FusionConfig     `koanf:"fusion"`
	Reranker   RerankerConfig   `koanf:"reranker"`
	Agent      AgentConfig      `koanf:"agent"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
}

// StoreConfig selects and tunes the vector store backend.
type StoreConfig struct {
	// Backend: "chromem" (embedded, persisted to Path) or "qdrant" (gRPC).
	Backend string `koanf:"backend"`

	// Path is the chromem persistence directory. Empty runs in-memory.
	Path string `koanf:"path"`

	// Collection names the chunk collection on either backend.
	Collection string `koanf:"collection"`

	// Qdrant connection parameters, used when Backend is "qdrant".
	QdrantHost string `koanf:"qdrant_host"`
	QdrantPort int    `koanf:"qdrant_port"`
	QdrantTLS  bool   `koanf:"qdrant_tls"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider: "fastembed" (local ONNX) or "tei" (HTTP inference server).
	Provider string `koanf:"provider"`

	// Model is the embedding model name. Empty uses the provider default.
	Model string `koanf:"model"`

	// BaseURL is the TEI endpoint, required for the tei provider.
	BaseURL string `koanf:"base_url"`

	// CacheDir holds downloaded fastembed model files.
	CacheDir string `koanf:"cache_dir"`
}

// LLMConfig selects the chat completion provider for reranking and the
// reasoning loop.
type LLMConfig struct {
	// Provider: "openai" or "ollama". Credentials come from the
	// provider's usual environment variables.
	Provider string `koanf:"provider"`

	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// RetrievalConfig holds vector and keyword search parameters.
type RetrievalConfig struct {
	// Language selects tokenizer stop-words and affix rules: "en" or "id".
	Language string `koanf:"language"`

	// TopK is the number of results returned after fusion.
	TopK int `koanf:"top_k"`

	// OverfetchFactor multiplies TopK when querying the vector store so
	// fusion has headroom to promote keyword-only hits.
	OverfetchFactor int `koanf:"overfetch_factor"`

	// MinScore drops fused results below this threshold.
	MinScore float64 `koanf:"min_score"`

	// BM25 parameters (BM25+ variant).
	BM25K1    float64 `koanf:"bm25_k1"`
	BM25B     float64 `koanf:"bm25_b"`
	BM25K3    float64 `koanf:"bm25_k3"`
	BM25Delta float64 `koanf:"bm25_delta"`
}

// FusionConfig holds rank fusion parameters.
type FusionConfig struct {
	// RRFK is the k constant in the reciprocal rank formula 1/(k+rank).
	RRFK float64 `koanf:"rrf_k"`

	// Normalize max-normalizes raw scores for single-method strategies.
	Normalize bool `koanf:"normalize"`
}

// RerankerConfig holds reranking strategy parameters.
type RerankerConfig struct {
	// Strategy: fast_local, llm_pointwise, llm_listwise, pairwise, ensemble.
	Strategy string `koanf:"strategy"`

	TopK     int     `koanf:"top_k"`
	MinScore float64 `koanf:"min_score"`

	// Ensemble weights. Normalized by their sum at scoring time.
	CrossWeight    float64 `koanf:"cross_weight"`
	LLMWeight      float64 `koanf:"llm_weight"`
	OriginalWeight float64 `koanf:"original_weight"`

	// MaxPairs caps pairwise tournament sampling.
	MaxPairs int `koanf:"max_pairs"`

	// RequestsPerSecond rate-limits pointwise LLM calls. 0 disables limiting.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Concurrency bounds pointwise fan-out.
	Concurrency int `koanf:"concurrency"`
}

// AgentConfig holds reasoning loop parameters.
type AgentConfig struct {
	// MaxSteps bounds the reasoning loop. The step budget is the only bound
	// on total work; wall-clock timeouts are the caller's responsibility.
	MaxSteps int `koanf:"max_steps"`

	Temperature float64 `koanf:"temperature"`

	// Language is the expected response language ("en" or "id"). A produced
	// answer in a different language triggers one resynthesis attempt.
	Language string `koanf:"language"`
}

// LoggingConfig holds logger settings. See internal/logging for semantics.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    "chromem",
			Collection: "chunks",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Retrieval: RetrievalConfig{
			Language:        "en",
			TopK:            10,
			OverfetchFactor: 3,
			MinScore:        0,
			BM25K1:          1.2,
			BM25B:           0.75,
			BM25K3:          8,
			BM25Delta:       1.0,
		},
		Fusion: FusionConfig{
			RRFK:      60,
			Normalize: true,
		},
		Reranker: RerankerConfig{
			Strategy:       "fast_local",
			TopK:           10,
			MinScore:       0,
			CrossWeight:    0.4,
			LLMWeight:      0.4,
			OriginalWeight: 0.2,
			MaxPairs:       20,
			Concurrency:    8,
		},
		Agent: AgentConfig{
			MaxSteps:    5,
			Temperature: 0.2,
			Language:    "en",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("store.backend must be 'chromem' or 'qdrant', got %q", c.Store.Backend)
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("embeddings.provider must be 'fastembed' or 'tei', got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url is required for the tei provider")
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider must be 'openai' or 'ollama', got %q", c.LLM.Provider)
	}
	if c.Retrieval.Language != "en" && c.Retrieval.Language != "id" {
		return fmt.Errorf("retrieval.language must be 'en' or 'id', got %q", c.Retrieval.Language)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.OverfetchFactor <= 0 {
		return fmt.Errorf("retrieval.overfetch_factor must be positive, got %d", c.Retrieval.OverfetchFactor)
	}
	if c.Retrieval.BM25K1 < 0 || c.Retrieval.BM25B < 0 || c.Retrieval.BM25B > 1 {
		return fmt.Errorf("invalid BM25 parameters: k1=%v b=%v", c.Retrieval.BM25K1, c.Retrieval.BM25B)
	}
	if c.Fusion.RRFK <= 0 {
		return fmt.Errorf("fusion.rrf_k must be positive, got %v", c.Fusion.RRFK)
	}
	switch c.Reranker.Strategy {
	case "fast_local", "llm_pointwise", "llm_listwise", "pairwise", "ensemble":
	default:
		return fmt.Errorf("reranker.strategy %q unknown", c.Reranker.Strategy)
	}
	if w := c.Reranker.CrossWeight + c.Reranker.LLMWeight + c.Reranker.OriginalWeight; w <= 0 {
		return fmt.Errorf("reranker weights must sum to a positive value, got %v", w)
	}
	if c.Reranker.MaxPairs <= 0 {
		return fmt.Errorf("reranker.max_pairs must be positive, got %d", c.Reranker.MaxPairs)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("agent.temperature must be in [0, 2], got %v", c.Agent.Temperature)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
