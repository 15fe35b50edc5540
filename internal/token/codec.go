// Package token provides model-faithful token counting and encoding.
// Chunking and history trimming both depend on counting tokens the same way
// the completion model does; counting words or characters over- or
// under-splits badly on code and non-English text.
package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Codec encodes text to a token stream and back. Implementations must be
// safe for concurrent use.
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

// Tiktoken wraps the BPE encoding used by an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// ForModel returns a Codec matching the given model's tokenizer. An unknown
// model or missing encoding data is a configuration error; callers should
// fail startup rather than retry.
func ForModel(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer for %s: %w", model, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
