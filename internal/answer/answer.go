// Package answer serves one completion request: embed the question, retrieve
// the bot's most similar chunks, and ask the chat model to answer from that
// context plus the trimmed conversation history.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sitebot/sitebot/internal/config"
	"github.com/sitebot/sitebot/internal/history"
	"github.com/sitebot/sitebot/internal/store"
	"github.com/sitebot/sitebot/internal/token"
)

// Fallback is the user-visible answer when the provider fails. Completion
// requests always get an answer payload, never an error.
const Fallback = "Could not generate an answer at this time."

const systemPrompt = "You are a helpful assistant for the website."

const questionTemplate = `Use the relevant information provided to answer the Question below. Ensure that all answers come from the provided information or reputable sources. Respond in the same language as the Question. If you don't know the answer, try to answer based on the previous messages. If you still don't know, don't improvise an answer.

Relevant Information:
%s

Question: %s
Answer: `

// Provider is the slice of the model API the answerer needs.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, msgs []history.Message, maxTokens int) (string, error)
}

// Answerer composes and executes the retrieval-augmented prompt for one bot.
type Answerer struct {
	provider  Provider
	store     store.DocumentStore
	codec     token.Codec
	cfg       config.AnswerConfig
	maxTokens int
	logger    *slog.Logger
}

// New builds an Answerer. maxTokens caps the model's answer length.
func New(provider Provider, docs store.DocumentStore, codec token.Codec, cfg config.AnswerConfig, maxTokens int, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		provider:  provider,
		store:     docs,
		codec:     codec,
		cfg:       cfg,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Answer runs the full retrieval-and-answer pipeline. It never returns an
// error: every failure path degrades to the fixed fallback string or to
// answering without retrieved context.
func (a *Answerer) Answer(ctx context.Context, question string, botID int, lastMessages []history.Message) string {
	questionVector, err := a.provider.Embed(ctx, question)
	if err != nil {
		a.logger.Error("question embedding failed", "bot_id", botID, "error", err)
		return Fallback
	}

	docs, err := a.store.SearchSimilar(ctx, botID, questionVector, a.cfg.SimilarityThreshold, a.cfg.TopK)
	if err != nil {
		// Retrieval failure is not fatal: the model can still answer from
		// the conversation history.
		a.logger.Error("document retrieval failed", "bot_id", botID, "error", err)
		docs = nil
	}

	trimmed := history.Trim(lastMessages, a.cfg.HistoryTokens, a.codec)
	prompt := a.compose(question, docs, trimmed)

	text, err := a.provider.Complete(ctx, prompt, a.maxTokens)
	if err != nil {
		a.logger.Error("completion failed", "bot_id", botID, "error", err)
		return Fallback
	}
	return text
}

// compose builds the chat prompt: a fixed system instruction, the trimmed
// history in order, and a final user turn carrying the retrieved context
// (blank-line separated, similarity order) and the question.
func (a *Answerer) compose(question string, docs []store.ScoredDocument, trimmed []history.Message) []history.Message {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	context := strings.Join(texts, "\n\n")

	msgs := make([]history.Message, 0, len(trimmed)+2)
	msgs = append(msgs, history.Message{Role: history.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, trimmed...)
	msgs = append(msgs, history.Message{
		Role:    history.RoleUser,
		Content: fmt.Sprintf(questionTemplate, context, question),
	})
	return msgs
}
