package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/sitebot/sitebot/internal/history"
)

// Complete sends the conversation to the chat model and returns the first
// choice's text, trimmed. The answer is capped at maxTokens output tokens.
func (c *Client) Complete(ctx context.Context, msgs []history.Message, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:  make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)),
		Model:     openai.ChatModel(c.cfg.CompletionModel),
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	for _, m := range msgs {
		switch m.Role {
		case history.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
