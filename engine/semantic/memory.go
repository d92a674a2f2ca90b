package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRecord struct {
	id        string
	vector    []float32
	text      string
	docID     string
	position  int
	createdAt time.Time
}

// MemoryStore is the in-process Index used when the durable backend is
// unavailable. Brute-force cosine scoring; nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	collection string
	dim        int
	created    bool
	records    []memRecord
}

// NewMemory creates an empty in-process store for the named collection.
func NewMemory(collection string, dim int) *MemoryStore {
	return &MemoryStore{collection: collection, dim: dim}
}

// Initialize resets the store to an empty collection of the configured
// dimension. Calling it twice leaves the same empty state.
func (m *MemoryStore) Initialize(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = true
	m.records = nil
	return nil
}

// ensure marks the collection as existing, mirroring the lazy-creation
// behaviour of the durable backend.
func (m *MemoryStore) ensure() {
	if !m.created {
		m.created = true
	}
}

// Upsert stores one record per chunk under docID.
func (m *MemoryStore) Upsert(_ context.Context, docID string, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("semantic: upsert: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()

	now := time.Now().UTC()
	for i, text := range chunks {
		if len(embeddings[i]) != m.dim {
			return fmt.Errorf("semantic: upsert chunk %d: vector has %d dims, want %d", i, len(embeddings[i]), m.dim)
		}
		vec := make([]float32, m.dim)
		copy(vec, embeddings[i])
		m.records = append(m.records, memRecord{
			id:        uuid.NewString(),
			vector:    vec,
			text:      text,
			docID:     docID,
			position:  i,
			createdAt: now,
		})
	}
	return nil
}

// Search filters by docID first, then ranks the remaining records by
// descending cosine similarity. Ties keep insertion order.
func (m *MemoryStore) Search(_ context.Context, vector []float32, limit int, docID string) ([]SearchResult, error) {
	m.mu.Lock()
	m.ensure()
	candidates := make([]memRecord, 0, len(m.records))
	for _, r := range m.records {
		if docID == "" || r.docID == docID {
			candidates = append(candidates, r)
		}
	}
	m.mu.Unlock()

	scored := make([]SearchResult, len(candidates))
	for i, r := range candidates {
		scored[i] = SearchResult{
			Text:     r.text,
			DocID:    r.docID,
			Position: r.position,
			Score:    cosineSimilarity(r.vector, vector),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if limit < len(scored) {
		scored = scored[:limit]
	}
	return scored, nil
}

// ListDocuments returns every distinct doc id with its chunk count, in
// first-insertion order.
func (m *MemoryStore) ListDocuments(_ context.Context) ([]DocumentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()

	counts := make(map[string]int)
	var order []string
	for _, r := range m.records {
		if _, seen := counts[r.docID]; !seen {
			order = append(order, r.docID)
		}
		counts[r.docID]++
	}
	docs := make([]DocumentInfo, len(order))
	for i, id := range order {
		docs[i] = DocumentInfo{DocID: id, ChunkCount: counts[id]}
	}
	return docs, nil
}

// DeleteDocument removes all records for docID. found is false when the
// collection was never created.
func (m *MemoryStore) DeleteDocument(_ context.Context, docID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return false, nil
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if r.docID != docID {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return true, nil
}

// Close is a no-op for the in-process store.
func (m *MemoryStore) Close() error { return nil }

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
