// Package main implements the ingest worker: it consumes queued ingest
// jobs from NATS and runs them through the full pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/ingest"
	"github.com/DocsageAI/docsage-mvp/engine/locality"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/embed"
	"github.com/DocsageAI/docsage-mvp/pkg/natsutil"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL     string
	QdrantAddr  string
	Collection  string
	OllamaURL   string
	EmbedModelA string
	EmbedModelB string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
}

func loadConfig() Config {
	return Config{
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		QdrantAddr:  envOr("QDRANT_ADDR", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "documents"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModelA: envOr("EMBED_MODEL_A", "all-minilm"),
		EmbedModelB: envOr("EMBED_MODEL_B", "paraphrase-multilingual"),
		Neo4jURL:    os.Getenv("NEO4J_URL"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	index, err := semantic.Open(ctx, semantic.Config{
		QdrantAddr: cfg.QdrantAddr,
		Collection: cfg.Collection,
		Dim:        domain.EmbedDim,
	}, logger)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer index.Close()

	fuser := embed.NewFuser(
		embed.NewOllamaClient(cfg.OllamaURL, cfg.EmbedModelA, 0),
		embed.NewOllamaClient(cfg.OllamaURL, cfg.EmbedModelB, 0),
		domain.EmbedDim,
	)

	deps := ingest.Deps{Embedder: fuser, Index: index, Logger: logger}
	if cfg.Neo4jURL != "" {
		locStore, err := locality.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Warn("locality graph unavailable, continuing without", "err", err)
		} else {
			defer locStore.Close(ctx)
			deps.Locality = locStore
		}
	}

	svc, err := ingest.NewService(deps, ingest.Options{}, ingest.DefaultNeighbors)
	if err != nil {
		return fmt.Errorf("ingest service: %w", err)
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("docsage-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, svc, logger)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	// Dead jobs only get logged for now; operators replay them by hand.
	dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, m ingest.DLQMessage) {
		logger.Error("ingest job dead-lettered", "doc_id", m.Job.DocID, "retries", m.Retries, "error", m.Error)
	})
	if err != nil {
		return fmt.Errorf("subscribe dlq: %w", err)
	}
	defer dlqSub.Unsubscribe()

	logger.Info("worker started", "subject", ingest.Subject)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
