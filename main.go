package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/gamma-omg/procurement-mcp/docstore"
	"github.com/gamma-omg/procurement-mcp/llm"
	"github.com/gamma-omg/procurement-mcp/readers"
	"github.com/gamma-omg/procurement-mcp/workflow"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
)

func createEmbeddingFunction(cfg *Config) (embeddings.EmbeddingFunction, error) {
	if cfg.OpenAI != nil {
		ef, err := openai.NewOpenAIEmbeddingFunction(
			cfg.OpenAI.ApiKey,
			openai.WithModel(openai.EmbeddingModel(cfg.OpenAI.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
		}

		return ef, nil
	}

	if cfg.Gemini != nil {
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.Gemini.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Gemini.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}

		return ef, nil
	}

	return nil, errors.New("invalid embeddings provider configuration")
}

func initSessionStore(ctx context.Context, logger *slog.Logger, cfg *Config) (*docstore.SessionStore, error) {
	ef, err := createEmbeddingFunction(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding function: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := docstore.NewSessionStore(initCtx, logger, docstore.SessionStoreConfig{
		BaseURL:       cfg.ChromaAddr,
		EmbeddingFunc: ef,
		RequestSize:   cfg.RequestSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	return store, nil
}

func main() {
	cfgPath := flag.String("config", "cfg/config.yaml", "Configuration file for the MCP server")
	flag.Parse()

	// Missing .env is fine; keys may come from the config or environment.
	_ = godotenv.Load()

	cfg, err := readConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %s", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(logFile, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := initSessionStore(ctx, logger, cfg)
	if err != nil {
		log.Fatal(err)
	}

	model, err := llm.NewClient(ctx, logger, llm.Config{
		APIKey:      cfg.LLM.ApiKey,
		Model:       cfg.LLM.Model,
		CallTimeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer model.Close()

	extractor := &readers.DocconvExtractor{}
	ingestor := NewIngestor(&DefaultChunkifier{
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}, store)

	if cfg.DocRoot != "" {
		reg := DocRegistry{
			log:              logger,
			root:             cfg.DocRoot,
			mergeEventsDelay: time.Duration(cfg.MergeEventsMs) * time.Millisecond,
			extractor:        extractor,
			ingestor:         ingestor,
			store:            store,
		}

		go func() {
			if err := reg.Sync(ctx); err != nil {
				log.Fatal(err)
			}

			if err := reg.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Fatal(err)
			}
		}()
	}

	flow := workflow.NewOrchestrator(logger, store, model)
	srv := NewRagServer(store, flow, extractor, ingestor, cfg.Results)
	sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", cfg.ServerAddr)))
	logger.Info("starting MCP server", slog.String("addr", cfg.ServerAddr))
	log.Println(sse.Start(cfg.ServerAddr))
}
