// Package domain defines shared constants, errors, and validation for the
// docsage retrieval pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

// EmbedDim is the dimensionality produced by the embedding fuser. It is
// fixed process-wide; the vector collection is created with this width.
const EmbedDim = 384

// Query represents a user retrieval query, optionally scoped to one document.
type Query struct {
	Text  string `json:"text"`
	DocID string `json:"doc_id,omitempty"`
}
