package ingest

// Job is a raw document submitted for ingestion, over HTTP or the queue.
type Job struct {
	DocID string `json:"doc_id,omitempty"`
	Text  string `json:"text"`
}

// Receipt summarises a completed ingest.
type Receipt struct {
	DocID      string  `json:"doc_id"`
	ChunkCount int     `json:"chunk_count"`
	// Clusters holds, per chunk, the indices of its nearest neighbors
	// within the same document, nearest first.
	Clusters [][]int `json:"clusters"`
}

// segmentedDoc is a document split into sentence units.
type segmentedDoc struct {
	DocID     string
	Sentences []string
}

// chunkedDoc is a document split into embeddable chunks.
type chunkedDoc struct {
	DocID  string
	Chunks []string
}

// embeddedDoc is a chunked document with fused embeddings.
type embeddedDoc struct {
	chunkedDoc
	Embeddings [][]float32
}

// clusteredDoc carries the per-chunk neighbor annotation.
type clusteredDoc struct {
	embeddedDoc
	Neighbors [][]int
}
