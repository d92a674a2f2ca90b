package ingest

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxWords is the target word budget per chunk.
	DefaultMaxWords = 200
	// DefaultOverlapSentences is how many trailing sentences of a closed
	// chunk seed the next one. The upstream knob was documented as a word
	// count but always applied as a sentence count; the sentence carry-over
	// is the contract here, so the name says what it does.
	DefaultOverlapSentences = 20
)

// Options configures sentence-bounded chunking.
type Options struct {
	MaxWords         int
	OverlapSentences int
}

// withDefaults fills zero values with the package defaults.
func (o Options) withDefaults() Options {
	if o.MaxWords <= 0 {
		o.MaxWords = DefaultMaxWords
	}
	if o.OverlapSentences < 0 {
		o.OverlapSentences = 0
	}
	return o
}

// Validate rejects option combinations that cannot terminate sensibly.
func (o Options) Validate() error {
	if o.MaxWords <= 0 {
		return fmt.Errorf("chunk: max words must be positive, got %d", o.MaxWords)
	}
	if o.OverlapSentences < 0 {
		return fmt.Errorf("chunk: overlap must be >= 0, got %d", o.OverlapSentences)
	}
	if o.OverlapSentences >= o.MaxWords {
		return fmt.Errorf("chunk: overlap %d must be smaller than max words %d", o.OverlapSentences, o.MaxWords)
	}
	return nil
}

// ChunkSentences accumulates sentences into chunks of at most MaxWords
// words, joining with single spaces. When a sentence would overflow the
// budget the chunk closes and the next one is seeded with up to
// OverlapSentences trailing sentences of the closed chunk. A single
// sentence longer than the budget is emitted whole; chunk boundaries always
// align to sentence boundaries.
func ChunkSentences(sentences []string, opts Options) []string {
	opts = opts.withDefaults()

	var chunks []string
	var current []string
	currentWords := 0

	for _, sentence := range sentences {
		words := wordCount(sentence)
		if currentWords+words > opts.MaxWords && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			if opts.OverlapSentences > 0 {
				keep := opts.OverlapSentences
				if keep > len(current) {
					keep = len(current)
				}
				seed := current[len(current)-keep:]
				current = append([]string(nil), seed...)
				currentWords = 0
				for _, s := range current {
					currentWords += wordCount(s)
				}
			} else {
				current = nil
				currentWords = 0
			}
		}
		current = append(current, sentence)
		currentWords += words
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
