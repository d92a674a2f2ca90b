package ingest

import (
	"strings"
	"unicode"
)

// SplitSentences splits text into sentence units in reading order using
// terminal punctuation and newlines. Empty input yields no sentences; text
// with no terminator comes back as a single sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// Terminal punctuation only ends a sentence when followed by
			// whitespace or end of input ("3.14" stays intact).
			if r == '\n' || i+1 >= len(text) || unicode.IsSpace(rune(text[i+1])) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
