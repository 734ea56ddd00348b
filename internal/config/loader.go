package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RETRIEVAL_TOP_K, AGENT_MAX_STEPS, ...)
//  2. YAML config file (~/.config/ragd/config.yaml)
//  3. Hardcoded defaults
//
// Environment variables split on the first underscore into section and field:
//
//	RETRIEVAL_TOP_K  -> retrieval.top_k
//	FUSION_RRF_K     -> fusion.rrf_k
//	AGENT_MAX_STEPS  -> agent.max_steps
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "ragd", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds maximum size of %d bytes", configPath, maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		// Section and field split on the first underscore only, so compound
		// field names keep their underscores: RETRIEVAL_TOP_K -> retrieval.top_k.
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills zero values that koanf's unmarshal may have cleared
// when a section is present in the file but a field is not.
func applyDefaults(cfg *Config) {
	def := NewDefaultConfig()
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.Store.QdrantHost == "" {
		cfg.Store.QdrantHost = def.Store.QdrantHost
	}
	if cfg.Store.QdrantPort == 0 {
		cfg.Store.QdrantPort = def.Store.QdrantPort
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = def.Embeddings.Provider
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.Retrieval.Language == "" {
		cfg.Retrieval.Language = def.Retrieval.Language
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.OverfetchFactor == 0 {
		cfg.Retrieval.OverfetchFactor = def.Retrieval.OverfetchFactor
	}
	if cfg.Retrieval.BM25K1 == 0 {
		cfg.Retrieval.BM25K1 = def.Retrieval.BM25K1
	}
	if cfg.Retrieval.BM25B == 0 {
		cfg.Retrieval.BM25B = def.Retrieval.BM25B
	}
	if cfg.Retrieval.BM25K3 == 0 {
		cfg.Retrieval.BM25K3 = def.Retrieval.BM25K3
	}
	if cfg.Fusion.RRFK == 0 {
		cfg.Fusion.RRFK = def.Fusion.RRFK
	}
	if cfg.Reranker.Strategy == "" {
		cfg.Reranker.Strategy = def.Reranker.Strategy
	}
	if cfg.Reranker.TopK == 0 {
		cfg.Reranker.TopK = def.Reranker.TopK
	}
	if cfg.Reranker.MaxPairs == 0 {
		cfg.Reranker.MaxPairs = def.Reranker.MaxPairs
	}
	if cfg.Reranker.Concurrency == 0 {
		cfg.Reranker.Concurrency = def.Reranker.Concurrency
	}
	if cfg.Reranker.CrossWeight == 0 && cfg.Reranker.LLMWeight == 0 && cfg.Reranker.OriginalWeight == 0 {
		cfg.Reranker.CrossWeight = def.Reranker.CrossWeight
		cfg.Reranker.LLMWeight = def.Reranker.LLMWeight
		cfg.Reranker.OriginalWeight = def.Reranker.OriginalWeight
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = def.Agent.MaxSteps
	}
	if cfg.Agent.Language == "" {
		cfg.Agent.Language = def.Agent.Language
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = def.Telemetry.Endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = def.Telemetry.ServiceVersion
	}
	if cfg.Telemetry.Metrics.ExportInterval == 0 {
		cfg.Telemetry.Metrics.ExportInterval = def.Telemetry.Metrics.ExportInterval
	}
	if cfg.Telemetry.Shutdown.Timeout == 0 {
		cfg.Telemetry.Shutdown.Timeout = def.Telemetry.Shutdown.Timeout
	}
	if cfg.Telemetry.Sampling.Rate == 0 {
		cfg.Telemetry.Sampling.Rate = def.Telemetry.Sampling.Rate
	}
}
