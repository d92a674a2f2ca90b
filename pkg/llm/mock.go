package llm

import (
	"context"
	"fmt"
	"strings"
)

// Mock is a Generator used when no provider is configured. It echoes the
// question and a preview of each retrieved context so the pipeline stays
// usable end to end without an external model.
type Mock struct{}

// Generate implements Generator.
func (Mock) Generate(_ context.Context, query string, contexts []Context) (string, error) {
	var b strings.Builder
	b.WriteString("This is a mock response since no language model is configured.\n\n")
	fmt.Fprintf(&b, "Your question was: %s\n\n", query)
	b.WriteString("Based on the documents I found:\n\n")
	for i, c := range contexts {
		preview := c.Text
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		fmt.Fprintf(&b, "Doc %d: %s\n\n", i+1, preview)
	}
	return b.String(), nil
}
