package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/ingest"
	"github.com/DocsageAI/docsage-mvp/engine/rag"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/metrics"
)

type fakeIngester struct {
	receipt ingest.Receipt
	err     error
}

func (f *fakeIngester) Ingest(_ context.Context, text, docID string) (ingest.Receipt, error) {
	if f.err != nil {
		return ingest.Receipt{}, f.err
	}
	return f.receipt, nil
}

type fakeAnswerer struct {
	answer *rag.Answer
	err    error
}

func (f *fakeAnswerer) Answer(context.Context, string, string) (*rag.Answer, error) {
	return f.answer, f.err
}

type fakeIndex struct {
	semantic.Index
	docs      []semantic.DocumentInfo
	listErr   error
	deleted   bool
	deleteErr error
}

func (f *fakeIndex) ListDocuments(context.Context) ([]semantic.DocumentInfo, error) {
	return f.docs, f.listErr
}

func (f *fakeIndex) DeleteDocument(context.Context, string) (bool, error) {
	return f.deleted, f.deleteErr
}

func testServer(ing ingester, ans answerer, index semantic.Index) *server {
	return newServer(ing, ans, index, nil, nil, metrics.New(), slog.New(slog.DiscardHandler))
}

func do(t *testing.T, s *server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleIngest(t *testing.T) {
	s := testServer(&fakeIngester{receipt: ingest.Receipt{DocID: "d1", ChunkCount: 3}}, nil, &fakeIndex{})

	rec := do(t, s, http.MethodPost, "/api/ingest", `{"text":"some document"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var receipt ingest.Receipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatal(err)
	}
	if receipt.DocID != "d1" || receipt.ChunkCount != 3 {
		t.Errorf("receipt: %+v", receipt)
	}
}

func TestHandleIngest_BadBody(t *testing.T) {
	s := testServer(&fakeIngester{}, nil, &fakeIndex{})
	if rec := do(t, s, http.MethodPost, "/api/ingest", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleIngest_EmptyDocument(t *testing.T) {
	s := testServer(&fakeIngester{err: domain.ErrEmptyDocument}, nil, &fakeIndex{})
	if rec := do(t, s, http.MethodPost, "/api/ingest", `{"text":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleIngest_AsyncWithoutQueue(t *testing.T) {
	s := testServer(&fakeIngester{}, nil, &fakeIndex{})
	rec := do(t, s, http.MethodPost, "/api/ingest", `{"text":"doc","async":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503 when NATS is not configured", rec.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	ans := &rag.Answer{Text: "answer", Sources: []rag.Source{{Text: "chunk", DocID: "d1"}}}
	s := testServer(nil, &fakeAnswerer{answer: ans}, &fakeIndex{})

	rec := do(t, s, http.MethodPost, "/api/query", `{"question":"what?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var got rag.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "answer" || len(got.Sources) != 1 {
		t.Errorf("answer: %+v", got)
	}
}

func TestHandleQuery_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyQuery, http.StatusBadRequest},
		{&domain.ValidationError{Field: "query"}, http.StatusBadRequest},
		{domain.ErrGeneratorUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk exploded"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		s := testServer(nil, &fakeAnswerer{err: c.err}, &fakeIndex{})
		rec := do(t, s, http.MethodPost, "/api/query", `{"question":"q?"}`)
		if rec.Code != c.want {
			t.Errorf("%v: status %d, want %d", c.err, rec.Code, c.want)
		}
	}
}

func TestHandleListDocuments(t *testing.T) {
	s := testServer(nil, nil, &fakeIndex{docs: []semantic.DocumentInfo{
		{DocID: "a", ChunkCount: 2},
		{DocID: "b", ChunkCount: 5},
	}})

	rec := do(t, s, http.MethodGet, "/api/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Documents []semantic.DocumentInfo `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Documents) != 2 {
		t.Errorf("documents: %+v", body.Documents)
	}
}

func TestHandleListDocuments_EmptyIsArray(t *testing.T) {
	s := testServer(nil, nil, &fakeIndex{})
	rec := do(t, s, http.MethodGet, "/api/documents", "")
	if !strings.Contains(rec.Body.String(), `"documents":[]`) {
		t.Errorf("empty list must serialize as []: %s", rec.Body)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	s := testServer(nil, nil, &fakeIndex{deleted: true})
	if rec := do(t, s, http.MethodDelete, "/api/documents/d1", ""); rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}

	s = testServer(nil, nil, &fakeIndex{deleted: false})
	if rec := do(t, s, http.MethodDelete, "/api/documents/ghost", ""); rec.Code != http.StatusNotFound {
		t.Errorf("absent doc: status %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(nil, nil, &fakeIndex{})
	rec := do(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("status %d body %s", rec.Code, rec.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(&fakeIngester{receipt: ingest.Receipt{DocID: "d1"}}, nil, &fakeIndex{})
	do(t, s, http.MethodPost, "/api/ingest", `{"text":"doc"}`)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docsage_ingests_total 1") {
		t.Errorf("metrics body:\n%s", rec.Body)
	}
}
