package llm

import (
	"context"

	"github.com/DocsageAI/docsage-mvp/pkg/resilience"
)

// brokenGenerator fails fast once the provider has been failing, instead
// of letting every query wait out a dead connection.
type brokenGenerator struct {
	inner   Generator
	breaker *resilience.Breaker
}

// WithBreaker wraps a Generator in a circuit breaker.
func WithBreaker(inner Generator, breaker *resilience.Breaker) Generator {
	return &brokenGenerator{inner: inner, breaker: breaker}
}

// Generate implements Generator.
func (g *brokenGenerator) Generate(ctx context.Context, query string, contexts []Context) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Generate(ctx, query, contexts)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
