// Package main implements the Docsage API server: document ingestion,
// retrieval-augmented querying, and document management over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/ingest"
	"github.com/DocsageAI/docsage-mvp/engine/locality"
	"github.com/DocsageAI/docsage-mvp/engine/rag"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/embed"
	"github.com/DocsageAI/docsage-mvp/pkg/llm"
	"github.com/DocsageAI/docsage-mvp/pkg/metrics"
	"github.com/DocsageAI/docsage-mvp/pkg/mid"
	"github.com/DocsageAI/docsage-mvp/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	CORSOrigin  string
	MaxBody     int64
	QdrantAddr  string
	Collection  string
	OllamaURL   string
	EmbedModelA string
	EmbedModelB string
	EmbedRPS    float64
	Generator   string // "ollama" or "mock"
	GenModel    string
	Neo4jURL    string // empty disables the locality graph
	Neo4jUser   string
	Neo4jPass   string
	NATSURL     string // empty disables async ingest
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		MaxBody:     envInt64("MAX_BODY_BYTES", 4<<20),
		QdrantAddr:  envOr("QDRANT_ADDR", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "documents"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModelA: envOr("EMBED_MODEL_A", "all-minilm"),
		EmbedModelB: envOr("EMBED_MODEL_B", "paraphrase-multilingual"),
		EmbedRPS:    envFloat("EMBED_RPS", 0),
		Generator:   envOr("GENERATOR", "mock"),
		GenModel:    envOr("GEN_MODEL", "llama3.2"),
		Neo4jURL:    os.Getenv("NEO4J_URL"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		NATSURL:     os.Getenv("NATS_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Vector index (Qdrant, with in-process fallback) ---
	index, err := semantic.Open(ctx, semantic.Config{
		QdrantAddr: cfg.QdrantAddr,
		Collection: cfg.Collection,
		Dim:        domain.EmbedDim,
	}, logger)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer index.Close()

	// --- Fused embedder ---
	fuser := embed.NewFuser(
		embed.NewOllamaClient(cfg.OllamaURL, cfg.EmbedModelA, cfg.EmbedRPS),
		embed.NewOllamaClient(cfg.OllamaURL, cfg.EmbedModelB, cfg.EmbedRPS),
		domain.EmbedDim,
	)

	// --- Answer generator ---
	var generator llm.Generator
	switch cfg.Generator {
	case "ollama":
		generator = llm.WithBreaker(
			llm.NewOllamaGenerator(cfg.OllamaURL, cfg.GenModel),
			resilience.New(resilience.DefaultOpts),
		)
	default:
		logger.Info("no language model configured, using mock generator")
		generator = llm.Mock{}
	}

	// --- Locality graph (optional) ---
	deps := ingest.Deps{Embedder: fuser, Index: index, Logger: logger}
	var locStore *locality.Store
	if cfg.Neo4jURL != "" {
		locStore, err = locality.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Warn("locality graph unavailable, continuing without", "err", err)
		} else {
			defer locStore.Close(ctx)
			deps.Locality = locStore
		}
	}

	ingestSvc, err := ingest.NewService(deps, ingest.Options{}, ingest.DefaultNeighbors)
	if err != nil {
		return fmt.Errorf("ingest service: %w", err)
	}

	ragSvc := rag.New(fuser, index, generator, rag.DefaultOptions(), logger)

	// --- NATS (optional, for async ingest) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("docsage-api"))
		if err != nil {
			logger.Warn("nats unavailable, async ingest disabled", "err", err)
		} else {
			defer nc.Close()
		}
	}

	srv := newServer(ingestSvc, ragSvc, index, locStore, nc, metrics.New(), logger)

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("docsage-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.MaxBody(cfg.MaxBody),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
