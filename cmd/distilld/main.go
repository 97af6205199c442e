// Distilld distills group-chat transcripts into structured project
// intelligence over HTTP.
//
// It parses pasted or uploaded chat logs, embeds and clusters them,
// filters low-signal messages, extracts decisions/action items/open
// questions via an external reasoning service, and answers questions
// about a processed session.
//
// Usage:
//
//	# Start server with defaults
//	distilld
//
//	# Configure via file and environment
//	distilld -config /etc/distilld/config.yaml
//	DISTILLD_SERVER_PORT=9000 DISTILLD_MISTRAL_API_KEY=sk-... distilld
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

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/chat"
	"github.com/fyrsmithlabs/distilld/internal/config"
	"github.com/fyrsmithlabs/distilld/internal/distill"
	"github.com/fyrsmithlabs/distilld/internal/embeddings"
	"github.com/fyrsmithlabs/distilld/internal/extraction"
	"github.com/fyrsmithlabs/distilld/internal/httpapi"
	"github.com/fyrsmithlabs/distilld/internal/logging"
	"github.com/fyrsmithlabs/distilld/internal/session"
	"github.com/fyrsmithlabs/distilld/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  distilld           Start the distilld server\n")
			fmt.Fprintf(os.Stderr, "  distilld version   Show version information\n")
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
	fmt.Printf("distilld by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all services and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
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
	defer func() { _ = logging.Sync(logger) }()

	logger.Info("starting distilld",
		zap.String("version", version),
		zap.String("commit", gitCommit),
	)

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Model:    cfg.Embeddings.Model,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	store, err := vectorstore.NewSessionStore(vectorstore.Config{
		Path:     cfg.VectorStore.Path,
		Compress: cfg.VectorStore.Compress,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}

	// A missing credential is a supported mode: processing still runs,
	// extraction and summary are skipped, answers explain the gap.
	var (
		llm       llms.Model
		extractor *extraction.Extractor
	)
	llm, err = extraction.NewClient(extraction.Config{
		APIKey:  cfg.Mistral.APIKey.Value(),
		BaseURL: cfg.Mistral.BaseURL,
		Model:   cfg.Mistral.Model,
	})
	switch {
	case errors.Is(err, extraction.ErrMissingAPIKey):
		logger.Warn("no reasoning service credential configured, extraction disabled")
		llm = nil
	case err != nil:
		return fmt.Errorf("initializing reasoning service client: %w", err)
	default:
		extractor = extraction.NewWithModel(llm, logger)
	}

	pipeline := distill.NewPipeline(embedder, store, extractor, distill.Options{
		MinClusterSize:        cfg.Distill.MinClusterSize,
		MinSamples:            cfg.Distill.MinSamples,
		NoiseThreshold:        cfg.Distill.NoiseThreshold,
		MinExtractionMessages: cfg.Distill.MinExtractionMessages,
		MinExtractionChars:    cfg.Distill.MinExtractionChars,
		SummaryMaxWords:       cfg.Distill.SummaryMaxWords,
		ExtractionParallelism: cfg.Distill.ExtractionParallelism,
	}, logger)

	registry := session.NewRegistry()
	answers := chat.NewEngine(embedder, store, llm, logger)

	server, err := httpapi.NewServer(registry, pipeline, answers, logger, &httpapi.Config{
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
