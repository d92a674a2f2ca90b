package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/DocsageAI/docsage-mvp/engine/domain"
	"github.com/DocsageAI/docsage-mvp/engine/ingest"
	"github.com/DocsageAI/docsage-mvp/engine/locality"
	"github.com/DocsageAI/docsage-mvp/engine/rag"
	"github.com/DocsageAI/docsage-mvp/engine/semantic"
	"github.com/DocsageAI/docsage-mvp/pkg/metrics"
	"github.com/DocsageAI/docsage-mvp/pkg/natsutil"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// ingester runs the ingest pipeline.
type ingester interface {
	Ingest(ctx context.Context, text, docID string) (ingest.Receipt, error)
}

// answerer runs the retrieval pipeline.
type answerer interface {
	Answer(ctx context.Context, question, docID string) (*rag.Answer, error)
}

type server struct {
	ingest  ingester
	rag     answerer
	index   semantic.Index
	graph   *locality.Store
	nats    *nats.Conn
	reg     *metrics.Registry
	logger  *slog.Logger
	ingests *metrics.Counter
	queries *metrics.Counter
	latency *metrics.Histogram
}

func newServer(ing ingester, ans answerer, index semantic.Index, graph *locality.Store,
	nc *nats.Conn, reg *metrics.Registry, logger *slog.Logger) *server {
	return &server{
		ingest:  ing,
		rag:     ans,
		index:   index,
		graph:   graph,
		nats:    nc,
		reg:     reg,
		logger:  logger,
		ingests: reg.Counter("docsage_ingests_total", "documents ingested"),
		queries: reg.Counter("docsage_queries_total", "questions answered"),
		latency: reg.Histogram("docsage_query_seconds", "query latency", nil),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.Handle("GET /metrics", s.reg.Handler())
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IngestRequest is the JSON body for POST /api/ingest.
type IngestRequest struct {
	Text  string `json:"text"`
	DocID string `json:"doc_id,omitempty"`
	Async bool   `json:"async,omitempty"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Async {
		if s.nats == nil {
			writeError(w, http.StatusServiceUnavailable, "async ingest is not configured")
			return
		}
		job := ingest.Job{DocID: req.DocID, Text: req.Text}
		if job.DocID == "" {
			job.DocID = uuid.NewString()
		}
		if err := natsutil.Publish(r.Context(), s.nats, ingest.Subject, job); err != nil {
			s.logger.Error("enqueue ingest failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "could not enqueue document")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"doc_id": job.DocID, "status": "queued"})
		return
	}

	receipt, err := s.ingest.Ingest(r.Context(), req.Text, req.DocID)
	if err != nil {
		s.writeDomainError(w, err, "ingest failed")
		return
	}
	s.ingests.Inc()
	writeJSON(w, http.StatusCreated, receipt)
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	DocID    string `json:"doc_id,omitempty"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	answer, err := s.rag.Answer(r.Context(), req.Question, req.DocID)
	if err != nil {
		s.writeDomainError(w, err, "query failed")
		return
	}
	s.queries.Inc()
	s.latency.Since(start)
	writeJSON(w, http.StatusOK, answer)
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.index.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if docs == nil {
		docs = []semantic.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	found, err := s.index.DeleteDocument(r.Context(), docID)
	if err != nil {
		s.logger.Error("delete document failed", "doc_id", docID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if s.graph != nil {
		if err := s.graph.DeleteDocument(r.Context(), docID); err != nil {
			s.logger.Warn("locality graph cleanup failed", "doc_id", docID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

// writeDomainError maps pipeline errors onto HTTP statuses: validation
// failures are the caller's fault, a missing generator is an upstream
// outage, anything else is a 500.
func (s *server) writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrGeneratorUnavailable):
		s.logger.Error(logMsg, "err", err)
		writeError(w, http.StatusServiceUnavailable, "answer generator unavailable")
	default:
		s.logger.Error(logMsg, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
