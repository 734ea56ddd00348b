// Ragd is the retrieval-and-reasoning daemon's command line front end.
//
// It wires the full stack — embeddings, vector store, hybrid retrieval,
// reranking, and the agentic reasoning loop — from one config file and
// exposes it as two operations: ingesting chunk files and answering
// questions.
//
// Usage:
//
//	# Ingest chunks from a JSONL file
//	ragd ingest chunks.jsonl
//
//	# Answer a question over the ingested corpus
//	ragd ask "how is cache eviction configured?"
//
//	# Configure via file or environment
//	ragd -config ./ragd.yaml ask "..."
//	STORE_BACKEND=qdrant LLM_MODEL=gpt-4o ragd ask "..."
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/agent"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/guardrails"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/session"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/ragd/config.yaml)")
	sessionID := flag.String("session", "", "session id for chunk and citation accumulation")
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("ragd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	case "ingest":
		if len(args) != 2 {
			err = fmt.Errorf("usage: ragd ingest <chunks.jsonl>")
			break
		}
		err = runIngest(ctx, *configPath, args[1])
	case "ask":
		if len(args) != 2 {
			err = fmt.Errorf("usage: ragd ask <question>")
			break
		}
		err = runAsk(ctx, *configPath, *sessionID, args[1])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragd: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  ragd ingest <chunks.jsonl>   Ingest chunks into the vector store\n")
	fmt.Fprintf(os.Stderr, "  ragd ask <question>          Answer a question over the corpus\n")
	fmt.Fprintf(os.Stderr, "  ragd version                 Show version information\n")
}

// stack holds the wired components shared by the subcommands.
type stack struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	embedder embeddings.Provider
	store    vectorstore.Store
}

func buildStack(ctx context.Context, configPath string) (*stack, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Format = cfg.Logging.Format
	logCfg.Output.OTEL = tel.LoggerProvider() != nil
	if logCfg.Level, err = logging.LevelFromString(cfg.Logging.Level); err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}

	var store vectorstore.Store
	switch cfg.Store.Backend {
	case "qdrant":
		store, err = vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.Store.QdrantHost,
			Port:       cfg.Store.QdrantPort,
			UseTLS:     cfg.Store.QdrantTLS,
			Collection: cfg.Store.Collection,
			VectorSize: uint64(embedder.Dimension()),
		}, embedder)
	default:
		store, err = vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:       cfg.Store.Path,
			Collection: cfg.Store.Collection,
		}, embedder, logger.Zap())
	}
	if err != nil {
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	return &stack{cfg: cfg, logger: logger, tel: tel, embedder: embedder, store: store}, nil
}

func (s *stack) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Zap().Warn("closing vector store", zap.Error(err))
	}
	if err := s.embedder.Close(); err != nil {
		s.logger.Zap().Warn("closing embedder", zap.Error(err))
	}
	_ = s.logger.Sync()
	if err := s.tel.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ragd: telemetry shutdown: %v\n", err)
	}
}

// chunkRecord is one line of an ingest JSONL file.
type chunkRecord struct {
	ID            string   `json:"id"`
	Content       string   `json:"content"`
	DocumentID    string   `json:"document_id"`
	DocumentTitle string   `json:"document_title"`
	PageNumber    int      `json:"page_number"`
	Section       string   `json:"section"`
	Headings      []string `json:"headings"`
	Ready         bool     `json:"ready"`
}

const ingestBatchSize = 64

func runIngest(ctx context.Context, configPath, path string) error {
	s, err := buildStack(ctx, configPath)
	if err != nil {
		return err
	}
	defer s.close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening chunk file: %w", err)
	}
	defer f.Close()

	var (
		batch []vectorstore.Document
		total int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := s.store.AddDocuments(ctx, batch); err != nil {
			return fmt.Errorf("adding documents: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec chunkRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, vectorstore.Document{
			ID:      rec.ID,
			Content: rec.Content,
			Metadata: map[string]string{
				vectorstore.MetaDocumentID:    rec.DocumentID,
				vectorstore.MetaDocumentTitle: rec.DocumentTitle,
				vectorstore.MetaPageNumber:    strconv.Itoa(rec.PageNumber),
				vectorstore.MetaSection:       rec.Section,
				vectorstore.MetaHeadings:      strings.Join(rec.Headings, "\n"),
				vectorstore.MetaReady:         strconv.FormatBool(rec.Ready),
			},
		})
		if len(batch) >= ingestBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading chunk file: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	fmt.Printf("ingested %d chunks\n", total)
	return nil
}

func runAsk(ctx context.Context, configPath, sessionID, question string) error {
	s, err := buildStack(ctx, configPath)
	if err != nil {
		return err
	}
	defer s.close()
	cfg := s.cfg

	model, err := buildModel(cfg)
	if err != nil {
		return fmt.Errorf("initializing chat model: %w", err)
	}
	provider := llm.NewLangchainProvider(model)

	vector := retrieval.NewVectorSearcher(s.store, s.embedder, s.logger)
	engine := retrieval.NewBM25Engine(retrieval.BM25Params{
		K1:    cfg.Retrieval.BM25K1,
		B:     cfg.Retrieval.BM25B,
		K3:    cfg.Retrieval.BM25K3,
		Delta: cfg.Retrieval.BM25Delta,
	}, retrieval.NewTokenizer(cfg.Retrieval.Language))
	fuser := retrieval.NewFuser(cfg.Fusion.RRFK, cfg.Fusion.Normalize)
	searcher := retrieval.NewHybridSearcher(vector, engine, fuser, s.logger)

	rr, err := reranker.New(reranker.Config{
		Strategy: reranker.Strategy(cfg.Reranker.Strategy),
		Language: cfg.Retrieval.Language,
		Weights: reranker.EnsembleWeights{
			Cross:    cfg.Reranker.CrossWeight,
			LLM:      cfg.Reranker.LLMWeight,
			Original: cfg.Reranker.OriginalWeight,
		},
		MinScore:          cfg.Reranker.MinScore,
		MaxPairs:          cfg.Reranker.MaxPairs,
		RequestsPerSecond: cfg.Reranker.RequestsPerSecond,
		Concurrency:       cfg.Reranker.Concurrency,
	}, provider, s.logger.Zap())
	if err != nil {
		return fmt.Errorf("initializing reranker: %w", err)
	}
	defer rr.Close()

	tools := agent.NewTools(searcher, rr, provider, agent.SearchDefaults{
		TopK:            cfg.Retrieval.TopK,
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
		MinScore:        cfg.Retrieval.MinScore,
		RerankTopK:      cfg.Reranker.TopK,
	}, s.logger)
	output := guardrails.NewChain(guardrails.NewSecretValidator())
	orchestrator, err := agent.NewOrchestrator(provider, tools, session.NewStore(), nil, output, agent.Config{
		MaxSteps:    cfg.Agent.MaxSteps,
		Temperature: cfg.Agent.Temperature,
	}, s.logger)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, question, agent.RunOptions{
		SessionID: sessionID,
		Language:  cfg.Agent.Language,
		OnStep: func(step agent.Step) {
			fmt.Fprintf(os.Stderr, "[%d] %s %s\n", step.Index, step.Type, step.ToolName)
		},
	})
	if errors.Is(err, agent.ErrOutputBlocked) {
		if v := result.Guardrails.Output; v != nil && v.SuggestedResponse != "" {
			fmt.Println(v.SuggestedResponse)
			return nil
		}
		fmt.Println("The answer was withheld because it contained material that can't be shared.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if len(result.Citations) > 0 {
		fmt.Println()
		for _, c := range result.Citations {
			fmt.Printf("[%d] %s\n", c.Number, c.DocumentTitle)
		}
	}
	return nil
}

func buildModel(cfg *config.Config) (llms.Model, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.LLM.Model)}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.LLM.BaseURL))
		}
		return ollama.New(opts...)
	default:
		opts := []openai.Option{openai.WithModel(cfg.LLM.Model)}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.New(opts...)
	}
}
