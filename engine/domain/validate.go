package domain

import "strings"

// ValidateIngest checks raw document text before chunking. The doc id is
// opaque and may be empty; the ingest service generates one in that case.
func ValidateIngest(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("text", "", ErrEmptyDocument)
	}
	return nil
}

// ValidateQuery checks a retrieval query before embedding.
func ValidateQuery(q Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", q.Text, ErrEmptyQuery)
	}
	return nil
}
