// Package ai wraps the OpenAI API behind the two operations the pipelines
// need: embedding text and completing a chat prompt. Both are fallible and
// callers are expected to degrade, not crash.
package ai

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sitebot/sitebot/internal/config"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate
// limits when embedding many chunks at once.
const DefaultBatchSize = 500

// ErrNoChoices is returned when a completion response carries no choices.
var ErrNoChoices = errors.New("completion returned no choices")

// Client is the OpenAI-backed embedding and completion provider.
type Client struct {
	api       openai.Client
	cfg       config.OpenAIConfig
	batchSize int
}

// NewClient builds a provider from configuration. A missing API key is a
// configuration error.
func NewClient(cfg config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is not set")
	}
	return &Client{
		api:       openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:       cfg,
		batchSize: DefaultBatchSize,
	}, nil
}

// Dimension returns the fixed embedding dimensionality of the configured model.
func (c *Client) Dimension() int {
	return c.cfg.Dimension
}
