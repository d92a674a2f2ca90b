// Package main implements the batch loader: it extracts text from local
// files and queues them for ingestion.
//
// Usage:
//
//	loader [-nats nats://localhost:4222] file.txt notes.md ...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/DocsageAI/docsage-mvp/engine/ingest"
	"github.com/DocsageAI/docsage-mvp/pkg/extract"
	"github.com/DocsageAI/docsage-mvp/pkg/natsutil"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	natsURL := flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: loader [-nats url] <file>...")
		os.Exit(2)
	}

	if err := run(*natsURL, flag.Args(), logger); err != nil {
		logger.Error("loader failed", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(natsURL string, paths []string, logger *slog.Logger) error {
	nc, err := nats.Connect(natsURL, nats.Name("docsage-loader"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	ctx := context.Background()
	failed := 0
	for _, path := range paths {
		text, err := extract.Text(path, mimeTypeFor(path))
		if err != nil {
			logger.Error("extract failed", "path", path, "err", err)
			failed++
			continue
		}

		job := ingest.Job{DocID: filepath.Base(path), Text: text}
		if err := natsutil.Publish(ctx, nc, ingest.Subject, job); err != nil {
			logger.Error("enqueue failed", "path", path, "err", err)
			failed++
			continue
		}
		logger.Info("queued", "path", path, "doc_id", job.DocID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

// mimeTypeFor resolves the media type by extension. The system table has
// no entry for plain text or markdown on a bare container image.
func mimeTypeFor(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".txt", ".text":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return mime.TypeByExtension(ext)
	}
}
