// Package semantic owns vector index storage for document chunks. The
// durable backend is Qdrant; a non-durable in-process store serves as a
// degraded fallback when Qdrant is unreachable at startup.
package semantic

import (
	"context"
	"log/slog"
	"time"
)

// Index is the vector index contract shared by the Qdrant-backed store and
// the in-process fallback. Implementations heal a missing collection
// internally: read paths return empty results, the write path creates the
// collection and retries exactly once.
type Index interface {
	// Initialize (re)creates the collection with the configured dimension
	// and cosine distance, discarding prior contents. Safe to call twice.
	Initialize(ctx context.Context) error
	// Upsert stores one record per chunk. chunks and embeddings must have
	// equal length; position is the index in the input sequence.
	Upsert(ctx context.Context, docID string, chunks []string, embeddings [][]float32) error
	// Search returns up to limit results by descending similarity. A
	// non-empty docID restricts the candidate set before ranking.
	Search(ctx context.Context, vector []float32, limit int, docID string) ([]SearchResult, error)
	// ListDocuments returns every distinct doc id with its chunk count.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
	// DeleteDocument removes all records for docID. found is false when the
	// collection itself does not exist; that is not an error.
	DeleteDocument(ctx context.Context, docID string) (found bool, err error)
	Close() error
}

// Config selects and sizes the index backend.
type Config struct {
	QdrantAddr string
	Collection string
	Dim        int
	// PingTimeout bounds the startup reachability probe.
	PingTimeout time.Duration
}

// Open connects to the durable Qdrant backend, probing reachability first.
// If Qdrant cannot be reached it falls back to the in-process store for the
// lifetime of the process and logs the degradation; callers must not rely on
// persistence across restarts in that mode.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}

	store, err := New(cfg.QdrantAddr, cfg.Collection, cfg.Dim)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
		if pingErr := store.Ping(pingCtx); pingErr == nil {
			logger.Info("vector index: connected to qdrant",
				"addr", cfg.QdrantAddr, "collection", cfg.Collection)
			return store, nil
		} else {
			err = pingErr
			_ = store.Close()
		}
	}

	logger.Warn("vector index: qdrant unreachable, falling back to in-memory store; data will not survive restarts",
		"addr", cfg.QdrantAddr, "err", err)
	return NewMemory(cfg.Collection, cfg.Dim), nil
}
