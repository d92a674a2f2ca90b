package semantic

// SearchResult is a read-only projection of one indexed chunk returned by
// similarity search, ranked by descending score.
type SearchResult struct {
	Text     string  `json:"text"`
	DocID    string  `json:"doc_id"`
	Position int     `json:"position"`
	Score    float32 `json:"score"`
}

// DocumentInfo summarises one distinct document held in the index.
type DocumentInfo struct {
	DocID      string `json:"doc_id"`
	ChunkCount int    `json:"chunk_count"`
}
