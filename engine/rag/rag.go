// Package rag orchestrates retrieval-augmented answering. It accepts a
// user question, embeds it with the fusing embedder, searches the vector
// index for relevant chunks, builds a prompt from the ranked contexts, and
// calls the answer generator.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/fn"
	"github.com/DocsageAI/docsage-mvp/pkg/llm"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// Embedder produces the query vector. The same fused embedder used at
// ingest time must be used here, or search scores are meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts vector search over the index.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int, docID string) ([]semantic.SearchResult, error)
}

// Options configures the retrieval pipeline.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          DefaultTopK,
		SearchTimeout: 5 * time.Second,
	}
}

// Service is the retrieval orchestration service.
type Service struct {
	embed  Embedder
	search Searcher
	gen    llm.Generator
	opts   Options
	logger *slog.Logger
}

// New creates a retrieval Service.
func New(embed Embedder, search Searcher, gen llm.Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	return &Service{embed: embed, search: search, gen: gen, opts: opts, logger: logger}
}

// Answer is the structured response of the retrieval pipeline.
type Answer struct {
	Text      string   `json:"text"`
	Sources   []Source `json:"sources"`
	NoResults bool     `json:"no_results"`
}

// Source is a retrieved chunk backing the answer, in rank order.
type Source struct {
	Text     string  `json:"text"`
	DocID    string  `json:"doc_id"`
	Position int     `json:"position"`
	Score    float32 `json:"score"`
}

// Answer runs the full pipeline for a user question. An empty docID
// searches the whole index; a non-empty one restricts retrieval to that
// document. When nothing relevant is found the generator is never called
// and the caller gets a NoResults answer, not an error.
func (s *Service) Answer(ctx context.Context, question, docID string) (*Answer, error) {
	if err := domain.ValidateQuery(domain.Query{Text: question, DocID: docID}); err != nil {
		return nil, err
	}
	s.logger.Info("rag: query start", "question_len", len(question), "doc_id", docID)

	vector, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	results, err := s.search.Search(searchCtx, vector, s.opts.TopK, docID)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	s.logger.Info("rag: search done", "results", len(results))

	if len(results) == 0 {
		return &Answer{Text: noResultsMessage(docID), NoResults: true}, nil
	}

	contexts := fn.Map(results, func(r semantic.SearchResult) llm.Context {
		return llm.Context{Text: r.Text, DocID: r.DocID, Position: r.Position, Score: r.Score}
	})
	sources := fn.Map(results, func(r semantic.SearchResult) Source {
		return Source{Text: r.Text, DocID: r.DocID, Position: r.Position, Score: r.Score}
	})

	text, err := s.gen.Generate(ctx, question, contexts)
	if err != nil {
		return nil, fmt.Errorf("rag: %w: %v", domain.ErrGeneratorUnavailable, err)
	}

	return &Answer{Text: text, Sources: sources}, nil
}

func noResultsMessage(docID string) string {
	if docID != "" {
		return fmt.Sprintf("No relevant content found in document %s.", docID)
	}
	return "No relevant content found. Ingest documents before querying."
}
