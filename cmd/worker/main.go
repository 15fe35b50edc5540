// Package main runs the sitebot worker: two queue-driven loops that train
// bots on websites and answer questions against the trained content.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sitebot/sitebot/internal/ai"
	"github.com/sitebot/sitebot/internal/answer"
	"github.com/sitebot/sitebot/internal/chunker"
	"github.com/sitebot/sitebot/internal/config"
	"github.com/sitebot/sitebot/internal/crawler"
	"github.com/sitebot/sitebot/internal/queue"
	"github.com/sitebot/sitebot/internal/store"
	"github.com/sitebot/sitebot/internal/token"
	"github.com/sitebot/sitebot/internal/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Sitebot training and completion worker",
	Long:  "Consumes training and completion requests from Redis streams and serves them against the document store.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the training and completion consumer loops",
	Long: `Runs both consumer loops until interrupted.

The training loop crawls a bot's website, chunks and embeds its text, and
stores the chunks. The completion loop embeds a question, retrieves the most
similar chunks for the bot, and asks the chat model to answer.

Environment variables (SITEBOT_ prefix) override the config file, e.g.
  SITEBOT_OPENAI_API_KEY   OpenAI API key (required)
  SITEBOT_REDIS_ADDR       Redis address (default localhost:6379)
  SITEBOT_STORAGE_POSTGRES_DSN  Postgres connection string`,
	RunE: runServe,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or verify the document store schema",
	RunE:  runSchema,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (optional)")
	rootCmd.AddCommand(serveCmd, schemaCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.Default()

	codec, err := token.ForModel(cfg.OpenAI.CompletionModel)
	if err != nil {
		return err
	}

	provider, err := ai.NewClient(cfg.OpenAI)
	if err != nil {
		return err
	}

	docs, err := store.Open(cfg.Storage, cfg.OpenAI.Dimension)
	if err != nil {
		return err
	}
	defer docs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := docs.EnsureSchema(ctx); err != nil {
		return err
	}

	ch := chunker.New(codec, cfg.Crawler.ChunkTokens)
	crawl := crawler.New(cfg.Crawler, ch, provider, docs, logger)
	answerer := answer.New(provider, docs, codec, cfg.Answer, cfg.OpenAI.MaxAnswerTokens, logger)

	broker, err := queue.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer broker.Close()

	consumer := broker.NewConsumer(cfg.Redis.Group)
	for _, stream := range []string{cfg.Redis.TrainingRequestStream, cfg.Redis.CompletionRequestStream} {
		if err := consumer.EnsureGroup(ctx, stream); err != nil {
			return err
		}
	}

	dispatcher := worker.New(consumer, broker, crawl, answerer, cfg.Redis, cfg.Worker, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.RunTraining(ctx)
	}()
	go func() {
		defer wg.Done()
		dispatcher.RunCompletion(ctx)
	}()

	logger.Info("worker started",
		"training_stream", cfg.Redis.TrainingRequestStream,
		"completion_stream", cfg.Redis.CompletionRequestStream,
		"storage", cfg.Storage.Backend,
	)
	wg.Wait()
	logger.Info("worker stopped")
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	docs, err := store.Open(cfg.Storage, cfg.OpenAI.Dimension)
	if err != nil {
		return err
	}
	defer docs.Close()

	if err := docs.EnsureSchema(context.Background()); err != nil {
		return err
	}
	fmt.Println("Document store schema is ready.")
	return nil
}
