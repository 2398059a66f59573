// Fortressd is a multi-tenant document retrieval daemon.
//
// It ingests documents into per-namespace vector indexes with append-only
// version governance, and answers questions over them through a
// retrieve-rerank-generate pipeline.
//
// Usage:
//
//	# Start with defaults (~/.config/fortressd/config.yaml if present)
//	fortressd
//
//	# Explicit config file
//	fortressd -config /etc/fortressd/config.yaml
//
//	# Configure via environment
//	FORTRESSD_SERVER_PORT=9100 FORTRESSD_STORAGE_ROOT=/var/lib/fortressd fortressd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fortressd/internal/config"
	"github.com/fyrsmithlabs/fortressd/internal/embeddings"
	"github.com/fyrsmithlabs/fortressd/internal/fingerprint"
	"github.com/fyrsmithlabs/fortressd/internal/generation"
	httpapi "github.com/fyrsmithlabs/fortressd/internal/http"
	"github.com/fyrsmithlabs/fortressd/internal/ingest"
	"github.com/fyrsmithlabs/fortressd/internal/logging"
	"github.com/fyrsmithlabs/fortressd/internal/reranker"
	"github.com/fyrsmithlabs/fortressd/internal/retrieval"
	"github.com/fyrsmithlabs/fortressd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  fortressd           Start the fortressd daemon\n")
			fmt.Fprintf(os.Stderr, "  fortressd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("fortressd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order: config, logger, embedding client, vector store, LLM
// client, pipeline services, HTTP server.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting fortressd",
		zap.String("version", version),
		zap.String("storage_root", cfg.Storage.Root),
		zap.String("tenancy_mode", cfg.Tenancy.Mode))

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:           cfg.Embeddings.BaseURL,
		Model:             cfg.Embeddings.Model,
		APIKey:            cfg.Embeddings.APIKey.Value(),
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Root:     cfg.Storage.Root,
		Compress: cfg.Storage.Compress,
	}, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing vector store", zap.Error(err))
		}
	}()

	llmKey := cfg.LLM.APIKey.Value()
	if llmKey == "" {
		// langchaingo requires a token; local servers ignore it
		llmKey = "placeholder"
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithModel(cfg.LLM.Model),
		openai.WithToken(llmKey),
	)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	generator, err := generation.NewLLMGenerator(llm)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	ingestSvc, err := ingest.NewService(ingest.Config{
		Root:         cfg.Storage.Root,
		Mode:         cfg.Mode(),
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
	}, store, fingerprint.NewTextExtractor(), logger)
	if err != nil {
		return fmt.Errorf("creating ingest service: %w", err)
	}

	retrievalSvc, err := retrieval.NewService(retrieval.Config{
		Mode: cfg.Mode(),
		TopK: cfg.Retrieval.TopK,
		TopN: cfg.Retrieval.TopN,
	}, store, reranker.NewLLMReranker(llm), generator, logger)
	if err != nil {
		return fmt.Errorf("creating retrieval service: %w", err)
	}

	server, err := httpapi.NewServer(ingestSvc, retrievalSvc, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}
