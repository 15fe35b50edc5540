// Package chunker splits page text into token-bounded segments for embedding.
package chunker

import "github.com/sitebot/sitebot/internal/token"

// Chunker performs a greedy fixed-size split over a text's token stream.
// Chunks are contiguous and non-overlapping, so decoding and concatenating
// them reproduces the original token stream, and the number of chunks is
// minimal for the budget.
type Chunker struct {
	codec  token.Codec
	budget int
}

// New creates a Chunker with the given per-chunk token budget.
func New(codec token.Codec, budget int) *Chunker {
	if budget <= 0 {
		budget = 512
	}
	return &Chunker{codec: codec, budget: budget}
}

// Split returns the text's chunks in order. Empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	tokens := c.codec.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(tokens)+c.budget-1)/c.budget)
	for start := 0; start < len(tokens); start += c.budget {
		end := min(start+c.budget, len(tokens))
		chunks = append(chunks, c.codec.Decode(tokens[start:end]))
	}
	return chunks
}

// Budget returns the configured per-chunk token budget.
func (c *Chunker) Budget() int {
	return c.budget
}
