package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/llm"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeSearcher struct {
	results []semantic.SearchResult
	err     error

	gotLimit int
	gotDocID string
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, limit int, docID string) ([]semantic.SearchResult, error) {
	f.gotLimit = limit
	f.gotDocID = docID
	return f.results, f.err
}

type fakeGenerator struct {
	reply string
	err   error

	called      bool
	gotContexts []llm.Context
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, contexts []llm.Context) (string, error) {
	f.called = true
	f.gotContexts = contexts
	return f.reply, f.err
}

func newTestService(search *fakeSearcher, gen *fakeGenerator) *Service {
	return New(&fakeEmbedder{vector: []float32{0.1, 0.2}}, search, gen,
		DefaultOptions(), slog.New(slog.DiscardHandler))
}

func TestAnswer_HappyPath(t *testing.T) {
	search := &fakeSearcher{results: []semantic.SearchResult{
		{Text: "first chunk", DocID: "d1", Position: 0, Score: 0.9},
		{Text: "second chunk", DocID: "d1", Position: 3, Score: 0.7},
	}}
	gen := &fakeGenerator{reply: "the answer [Doc 1]"}

	ans, err := newTestService(search, gen).Answer(context.Background(), "what is this?", "")
	if err != nil {
		t.Fatal(err)
	}

	if ans.Text != "the answer [Doc 1]" || ans.NoResults {
		t.Errorf("answer: %+v", ans)
	}
	if search.gotLimit != DefaultTopK {
		t.Errorf("search limit %d, want %d", search.gotLimit, DefaultTopK)
	}
	if len(ans.Sources) != 2 || ans.Sources[0].Score < ans.Sources[1].Score {
		t.Errorf("sources not in rank order: %+v", ans.Sources)
	}
	// Generator sees the contexts in the same rank order as the sources.
	if len(gen.gotContexts) != 2 || gen.gotContexts[0].Text != "first chunk" {
		t.Errorf("generator contexts: %+v", gen.gotContexts)
	}
}

func TestAnswer_DocScoped(t *testing.T) {
	search := &fakeSearcher{results: []semantic.SearchResult{
		{Text: "chunk", DocID: "d7", Score: 0.8},
	}}
	gen := &fakeGenerator{reply: "scoped answer"}

	_, err := newTestService(search, gen).Answer(context.Background(), "question?", "d7")
	if err != nil {
		t.Fatal(err)
	}
	if search.gotDocID != "d7" {
		t.Errorf("search doc filter %q, want d7", search.gotDocID)
	}
}

func TestAnswer_NoResults(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	ans, err := newTestService(&fakeSearcher{}, gen).Answer(context.Background(), "anything?", "")
	if err != nil {
		t.Fatal(err)
	}

	if !ans.NoResults {
		t.Error("expected NoResults")
	}
	if gen.called {
		t.Error("generator must not run when retrieval is empty")
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources: %+v", ans.Sources)
	}
}

func TestAnswer_NoResultsMessageScoped(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, &fakeGenerator{})

	ans, err := svc.Answer(context.Background(), "anything?", "d9")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ans.Text, "d9") {
		t.Errorf("message not scoped to document: %q", ans.Text)
	}

	ans, err = svc.Answer(context.Background(), "anything?", "")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(ans.Text, "d9") {
		t.Errorf("unscoped message mentions a document: %q", ans.Text)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, &fakeGenerator{})
	for _, q := range []string{"", "  \t "} {
		_, err := svc.Answer(context.Background(), q, "")
		if !errors.Is(err, domain.ErrEmptyQuery) {
			t.Errorf("question %q: got %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestAnswer_EmbedFailure(t *testing.T) {
	boom := errors.New("embedder offline")
	svc := New(&fakeEmbedder{err: boom}, &fakeSearcher{}, &fakeGenerator{},
		DefaultOptions(), slog.New(slog.DiscardHandler))

	_, err := svc.Answer(context.Background(), "question?", "")
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped embed error", err)
	}
}

func TestAnswer_SearchFailure(t *testing.T) {
	boom := errors.New("index down")
	svc := newTestService(&fakeSearcher{err: boom}, &fakeGenerator{})

	_, err := svc.Answer(context.Background(), "question?", "")
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped search error", err)
	}
}

func TestAnswer_GeneratorFailure(t *testing.T) {
	search := &fakeSearcher{results: []semantic.SearchResult{{Text: "chunk", DocID: "d1"}}}
	svc := newTestService(search, &fakeGenerator{err: errors.New("model gone")})

	_, err := svc.Answer(context.Background(), "question?", "")
	if !errors.Is(err, domain.ErrGeneratorUnavailable) {
		t.Errorf("got %v, want ErrGeneratorUnavailable", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	svc := New(&fakeEmbedder{}, &fakeSearcher{}, &fakeGenerator{}, Options{}, nil)
	if svc.opts.TopK != DefaultTopK {
		t.Errorf("TopK default: %d", svc.opts.TopK)
	}
	if svc.opts.SearchTimeout <= 0 {
		t.Error("SearchTimeout default missing")
	}
}
