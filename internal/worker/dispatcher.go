// Package worker runs the two message-driven loops: one consuming training
// requests, one consuming completion requests. Each loop is strictly
// sequential: it fully processes a message, publishes the response, and
// acknowledges before pulling the next. No message's failure ever
// terminates a loop.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sitebot/sitebot/internal/config"
	"github.com/sitebot/sitebot/internal/crawler"
	"github.com/sitebot/sitebot/internal/history"
	"github.com/sitebot/sitebot/internal/queue"
)

// trainedMessage is the acknowledgement text sent after a successful run.
const trainedMessage = "Training process completed. Your Web-bot is Ready!"

// Consumer is the receiving side of the broker.
type Consumer interface {
	Receive(ctx context.Context, stream string) (*queue.Delivery, error)
	Ack(ctx context.Context, stream, id string) error
}

// Publisher is the sending side of the broker.
type Publisher interface {
	Publish(ctx context.Context, stream string, payload any) error
}

// Trainer runs one crawl-and-index run for a bot.
type Trainer interface {
	Crawl(ctx context.Context, botID int, startURL string) (*crawler.Result, error)
}

// Answerer produces an answer for a question; it never fails, only degrades.
type Answerer interface {
	Answer(ctx context.Context, question string, botID int, lastMessages []history.Message) string
}

// Dispatcher wires the broker to the training and completion pipelines.
type Dispatcher struct {
	consumer  Consumer
	publisher Publisher
	trainer   Trainer
	answerer  Answerer
	streams   config.RedisConfig
	logger    *slog.Logger

	publishTrainingFailures bool
}

// New builds a dispatcher.
func New(consumer Consumer, publisher Publisher, trainer Trainer, answerer Answerer, streams config.RedisConfig, workerCfg config.WorkerConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		consumer:                consumer,
		publisher:               publisher,
		trainer:                 trainer,
		answerer:                answerer,
		streams:                 streams,
		publishTrainingFailures: workerCfg.PublishTrainingFailures,
		logger:                  logger,
	}
}

// RunTraining consumes the training request stream until the context is
// cancelled.
func (d *Dispatcher) RunTraining(ctx context.Context) {
	d.runLoop(ctx, d.streams.TrainingRequestStream, d.handleTraining)
}

// RunCompletion consumes the completion request stream until the context is
// cancelled.
func (d *Dispatcher) RunCompletion(ctx context.Context) {
	d.runLoop(ctx, d.streams.CompletionRequestStream, d.handleCompletion)
}

func (d *Dispatcher) runLoop(ctx context.Context, stream string, handle func(context.Context, []byte)) {
	d.logger.Info("consuming", "stream", stream)
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, err := d.consumer.Receive(ctx, stream)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("receive failed", "stream", stream, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		handle(ctx, delivery.Body)

		if err := d.consumer.Ack(ctx, stream, delivery.ID); err != nil {
			d.logger.Error("ack failed", "stream", stream, "id", delivery.ID, "error", err)
		}
	}
}

// handleTraining processes one training request end to end. Malformed
// payloads are dropped without a response; crawl failures emit a failure
// response only when configured to.
func (d *Dispatcher) handleTraining(ctx context.Context, body []byte) {
	req, err := decodeTraining(body)
	if err != nil {
		d.logger.Error("dropping malformed training request", "error", err)
		return
	}
	d.logger.Info("training request received", "bot_id", req.ID, "domain", req.Domain)

	result, err := d.trainer.Crawl(ctx, req.ID, req.Domain)
	if err != nil {
		d.logger.Error("training run failed", "bot_id", req.ID, "error", err)
		if d.publishTrainingFailures {
			d.respond(ctx, d.streams.TrainingResponseStream, TrainingResponse{
				BotID:   req.ID,
				Status:  "Failed",
				Message: "Training failed: " + err.Error(),
			})
		}
		return
	}

	d.logger.Info("training run complete",
		"bot_id", req.ID,
		"pages", result.PagesVisited,
		"chunks", result.ChunksStored,
	)
	d.respond(ctx, d.streams.TrainingResponseStream, TrainingResponse{
		BotID:   req.ID,
		Status:  "Active",
		Message: trainedMessage,
	})
}

// handleCompletion processes one completion request. The answerer always
// yields an answer (real or fallback), so every well-formed request gets a
// response on its reply stream.
func (d *Dispatcher) handleCompletion(ctx context.Context, body []byte) {
	req, err := decodeCompletion(body)
	if err != nil {
		d.logger.Error("dropping malformed completion request", "error", err)
		return
	}
	d.logger.Info("completion request received", "bot_id", req.BotID, "correlation_id", req.CorrelationID)

	answer := d.answerer.Answer(ctx, req.Question, req.BotID, toHistory(req.LastMessages))

	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = d.streams.DefaultReplyStream
	}
	d.respond(ctx, replyTo, CompletionResponse{
		Question:      req.Question,
		Answer:        answer,
		CorrelationID: req.CorrelationID,
	})
}

func (d *Dispatcher) respond(ctx context.Context, stream string, payload any) {
	if err := d.publisher.Publish(ctx, stream, payload); err != nil {
		d.logger.Error("publish failed", "stream", stream, "error", err)
	}
}
