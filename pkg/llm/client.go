// Package llm abstracts the answer-generation collaborator. The retrieval
// core treats it as a black box taking (query, ranked contexts) and
// returning text, so any provider — or the mock — can back it.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Context is one retrieved chunk handed to the generator, in rank order.
type Context struct {
	Text     string
	DocID    string
	Position int
	Score    float32
}

// Generator produces an answer grounded in the given contexts. Contexts
// must be passed in the ranked order received so citation numbering
// ("Doc 1", "Doc 2", ...) stays stable.
type Generator interface {
	Generate(ctx context.Context, query string, contexts []Context) (string, error)
}

// BuildPrompt renders the grounding prompt with numbered document contexts.
func BuildPrompt(query string, contexts []Context) string {
	var b strings.Builder
	b.WriteString("Answer based on these documents:\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "Doc %d: %s\n\n", i+1, c.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Answer with citations to the documents by referencing Doc numbers.")
	return b.String()
}
