// Package ingest implements the ingestion pipeline: raw text is segmented
// into sentences, chunked with sentence overlap, embedded by the fusing
// embedder, annotated with nearest-neighbor locality, and stored in the
// vector index.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/fn"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	// Subject is the NATS subject for queued ingest jobs.
	Subject = "docs.ingest"
	// DLQSubject receives jobs that exhausted their retries.
	DLQSubject = "docs.ingest.dlq"
	// MaxRetries before a queued job goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Embedder is the fusing embedder consumed by the pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// LocalityWriter persists the chunk-neighbor annotation. Optional; ingest
// succeeds without one.
type LocalityWriter interface {
	SaveChunkGraph(ctx context.Context, docID string, chunkCount int, neighbors [][]int) error
}

// Deps holds the collaborators of the ingest service.
type Deps struct {
	Embedder  Embedder
	Index     semantic.Index
	Neighbors NeighborIndex
	Locality  LocalityWriter
	Logger    *slog.Logger
}

// Service runs the ingest pipeline.
type Service struct {
	deps     Deps
	chunking Options
	k        int
	pipeline fn.Stage[Job, Receipt]
}

// NewService wires the pipeline stages. Chunking options are validated
// after defaulting; k is the neighbor count for the locality annotation.
func NewService(deps Deps, chunking Options, k int) (*Service, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Neighbors == nil {
		deps.Neighbors = BruteForce{}
	}
	if k <= 0 {
		k = DefaultNeighbors
	}
	chunking = chunking.withDefaults()
	if err := chunking.Validate(); err != nil {
		return nil, err
	}

	s := &Service{deps: deps, chunking: chunking, k: k}
	s.pipeline = s.buildPipeline()
	return s, nil
}

// Ingest runs raw text through the full pipeline and returns the receipt.
// An empty docID gets a generated one; a chunk set for an existing docID is
// only ever replaced by a full delete plus re-ingest.
func (s *Service) Ingest(ctx context.Context, text, docID string) (Receipt, error) {
	if err := domain.ValidateIngest(text); err != nil {
		return Receipt{}, err
	}
	if docID == "" {
		docID = uuid.NewString()
	}
	return s.pipeline(ctx, Job{DocID: docID, Text: text}).Unwrap()
}

func (s *Service) buildPipeline() fn.Stage[Job, Receipt] {
	segment := fn.TracedStage("ingest.segment", fn.MapStage(func(job Job) segmentedDoc {
		return segmentedDoc{DocID: job.DocID, Sentences: SplitSentences(job.Text)}
	}))

	chunk := fn.TracedStage("ingest.chunk", fn.MapStage(func(doc segmentedDoc) chunkedDoc {
		return chunkedDoc{DocID: doc.DocID, Chunks: ChunkSentences(doc.Sentences, s.chunking)}
	}))

	logChunks := fn.TapStage(func(_ context.Context, doc chunkedDoc) {
		s.deps.Logger.Debug("ingest: chunked", "doc_id", doc.DocID, "chunks", len(doc.Chunks))
	})

	embed := fn.TracedStage("ingest.embed", fn.Stage[chunkedDoc, embeddedDoc](
		func(ctx context.Context, doc chunkedDoc) fn.Result[embeddedDoc] {
			embeddings, err := s.deps.Embedder.EmbedAll(ctx, doc.Chunks)
			if err != nil {
				return fn.Err[embeddedDoc](fmt.Errorf("ingest: embed doc %s: %w", doc.DocID, err))
			}
			return fn.Ok(embeddedDoc{chunkedDoc: doc, Embeddings: embeddings})
		}))

	cluster := fn.TracedStage("ingest.cluster", fn.Stage[embeddedDoc, clusteredDoc](
		func(_ context.Context, doc embeddedDoc) fn.Result[clusteredDoc] {
			neighbors, err := s.deps.Neighbors.KNeighbors(doc.Embeddings, s.k)
			if err != nil {
				return fn.Err[clusteredDoc](fmt.Errorf("ingest: cluster doc %s: %w", doc.DocID, err))
			}
			return fn.Ok(clusteredDoc{embeddedDoc: doc, Neighbors: neighbors})
		}))

	store := fn.TracedStage("ingest.store", fn.Stage[clusteredDoc, Receipt](
		func(ctx context.Context, doc clusteredDoc) fn.Result[Receipt] {
			if err := s.deps.Index.Upsert(ctx, doc.DocID, doc.Chunks, doc.Embeddings); err != nil {
				return fn.Err[Receipt](fmt.Errorf("ingest: store doc %s: %w", doc.DocID, err))
			}
			// The locality annotation is advisory; failures never undo a
			// successful index write.
			if s.deps.Locality != nil {
				if err := s.deps.Locality.SaveChunkGraph(ctx, doc.DocID, len(doc.Chunks), doc.Neighbors); err != nil {
					s.deps.Logger.Warn("ingest: locality graph write failed", "doc_id", doc.DocID, "err", err)
				}
			}
			return fn.Ok(Receipt{DocID: doc.DocID, ChunkCount: len(doc.Chunks), Clusters: doc.Neighbors})
		}))

	return fn.Then(fn.Then(fn.Then(fn.Then(fn.Then(segment, chunk), logChunks), embed), cluster), store)
}

// DLQMessage is published when a queued job exhausts its retries.
type DLQMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// StartConsumer subscribes the service to queued ingest jobs. Failed jobs
// are re-published with an incremented retry count and moved to the DLQ
// after MaxRetries.
func StartConsumer(nc *nats.Conn, svc *Service, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			logger.Error("ingest: unmarshal job failed", "err", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		receipt, err := svc.Ingest(context.Background(), job.Text, job.DocID)
		if err == nil {
			logger.Info("ingest: job done", "doc_id", receipt.DocID, "chunks", receipt.ChunkCount)
			return
		}

		retries++
		logger.Error("ingest: job failed", "doc_id", job.DocID, "retry", retries, "err", err)

		if retries >= MaxRetries {
			data, _ := json.Marshal(DLQMessage{Job: job, Error: err.Error(), Retries: retries})
			if pubErr := nc.Publish(DLQSubject, data); pubErr != nil {
				logger.Error("ingest: DLQ publish failed", "err", pubErr)
			}
			return
		}

		retryMsg := nats.NewMsg(Subject)
		retryMsg.Data = msg.Data
		retryMsg.Header = nats.Header{}
		retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
		if pubErr := nc.PublishMsg(retryMsg); pubErr != nil {
			logger.Error("ingest: retry publish failed", "err", pubErr)
		}
	})
}
