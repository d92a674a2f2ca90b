package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
)

type stubEmbedder struct {
	dim  int
	err  error
	seen []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	v := make([]float32, s.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (s *stubEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.seen = append(s.seen, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

type stubIndex struct {
	semantic.Index
	upsertErr error
	docID     string
	chunks    []string
	vectors   [][]float32
}

func (s *stubIndex) Upsert(_ context.Context, docID string, chunks []string, embeddings [][]float32) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.docID = docID
	s.chunks = chunks
	s.vectors = embeddings
	return nil
}

type stubLocality struct {
	err   error
	docID string
	count int
	nbrs  [][]int
}

func (s *stubLocality) SaveChunkGraph(_ context.Context, docID string, chunkCount int, neighbors [][]int) error {
	if s.err != nil {
		return s.err
	}
	s.docID = docID
	s.count = chunkCount
	s.nbrs = neighbors
	return nil
}

func newTestService(t *testing.T, embedder *stubEmbedder, index *stubIndex, loc *stubLocality) *Service {
	t.Helper()
	deps := Deps{
		Embedder: embedder,
		Index:    index,
		Logger:   slog.New(slog.DiscardHandler),
	}
	if loc != nil {
		deps.Locality = loc
	}
	svc, err := NewService(deps, Options{MaxWords: 6, OverlapSentences: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestService_Ingest(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	index := &stubIndex{}
	loc := &stubLocality{}
	svc := newTestService(t, embedder, index, loc)

	text := "Sentence number one here. Sentence number two here. Sentence number three here."
	receipt, err := svc.Ingest(context.Background(), text, "doc-1")
	if err != nil {
		t.Fatal(err)
	}

	if receipt.DocID != "doc-1" {
		t.Errorf("doc id: %q", receipt.DocID)
	}
	if receipt.ChunkCount != len(index.chunks) {
		t.Errorf("receipt chunk count %d, index got %d chunks", receipt.ChunkCount, len(index.chunks))
	}
	if receipt.ChunkCount < 2 {
		t.Errorf("expected multiple chunks for %d-word text, got %d", len(strings.Fields(text)), receipt.ChunkCount)
	}
	if len(receipt.Clusters) != receipt.ChunkCount {
		t.Errorf("clusters per chunk: got %d, want %d", len(receipt.Clusters), receipt.ChunkCount)
	}
	for i, nbrs := range receipt.Clusters {
		if len(nbrs) == 0 || nbrs[0] != i {
			t.Errorf("chunk %d neighbors: %v", i, nbrs)
		}
	}
	if index.docID != "doc-1" || len(index.vectors) != len(index.chunks) {
		t.Errorf("index upsert: docID=%q chunks=%d vectors=%d", index.docID, len(index.chunks), len(index.vectors))
	}
	if loc.docID != "doc-1" || loc.count != receipt.ChunkCount {
		t.Errorf("locality write: docID=%q count=%d", loc.docID, loc.count)
	}
}

func TestService_Ingest_GeneratesDocID(t *testing.T) {
	svc := newTestService(t, &stubEmbedder{dim: 4}, &stubIndex{}, nil)

	receipt, err := svc.Ingest(context.Background(), "Some short text.", "")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.DocID == "" {
		t.Error("expected a generated doc id")
	}
}

func TestService_Ingest_EmptyTextRejected(t *testing.T) {
	svc := newTestService(t, &stubEmbedder{dim: 4}, &stubIndex{}, nil)

	for _, text := range []string{"", "   \n\t "} {
		_, err := svc.Ingest(context.Background(), text, "doc-1")
		if !errors.Is(err, domain.ErrEmptyDocument) {
			t.Errorf("text %q: got %v, want ErrEmptyDocument", text, err)
		}
	}
}

func TestService_Ingest_EmbedderFailure(t *testing.T) {
	boom := errors.New("model offline")
	index := &stubIndex{}
	svc := newTestService(t, &stubEmbedder{dim: 4, err: boom}, index, nil)

	_, err := svc.Ingest(context.Background(), "Some text to embed.", "doc-1")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped embedder error", err)
	}
	if index.docID != "" {
		t.Error("index written despite embed failure")
	}
}

func TestService_Ingest_IndexFailure(t *testing.T) {
	boom := errors.New("store down")
	svc := newTestService(t, &stubEmbedder{dim: 4}, &stubIndex{upsertErr: boom}, nil)

	_, err := svc.Ingest(context.Background(), "Some text to store.", "doc-1")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped index error", err)
	}
}

func TestService_Ingest_LocalityFailureIsAdvisory(t *testing.T) {
	index := &stubIndex{}
	loc := &stubLocality{err: errors.New("graph down")}
	svc := newTestService(t, &stubEmbedder{dim: 4}, index, loc)

	receipt, err := svc.Ingest(context.Background(), "Text that still lands in the index.", "doc-1")
	if err != nil {
		t.Fatalf("locality failure must not fail ingest: %v", err)
	}
	if receipt.ChunkCount == 0 || index.docID != "doc-1" {
		t.Error("index write missing despite successful ingest")
	}
}

func TestNewService_InvalidChunking(t *testing.T) {
	_, err := NewService(Deps{Embedder: &stubEmbedder{dim: 4}, Index: &stubIndex{}},
		Options{MaxWords: 5, OverlapSentences: 5}, 2)
	if err == nil {
		t.Error("expected validation error for overlap >= max words")
	}
}
