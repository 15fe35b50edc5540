// Package main provides a one-shot training CLI: crawl a website and index
// its content for a bot without going through the message queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sitebot/sitebot/internal/ai"
	"github.com/sitebot/sitebot/internal/chunker"
	"github.com/sitebot/sitebot/internal/config"
	"github.com/sitebot/sitebot/internal/crawler"
	"github.com/sitebot/sitebot/internal/store"
	"github.com/sitebot/sitebot/internal/token"
)

var (
	configPath string
	botID      int
	startURL   string
	maxDepth   int
)

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Crawl a website and index its content for a bot",
	Long: `Crawls the site at --url up to the configured depth, splits each page's
text into token-bounded chunks, embeds every chunk, and stores the results
for --bot. Useful for local runs and re-training outside the queue.`,
	RunE: runTrain,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file (optional)")
	rootCmd.Flags().IntVar(&botID, "bot", 0, "bot identifier (required)")
	rootCmd.Flags().StringVar(&startURL, "url", "", "start URL (required)")
	rootCmd.Flags().IntVar(&maxDepth, "depth", 0, "override crawl depth (optional)")
	_ = rootCmd.MarkFlagRequired("bot")
	_ = rootCmd.MarkFlagRequired("url")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if maxDepth > 0 {
		cfg.Crawler.MaxDepth = maxDepth
	}

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
	crawl := crawler.New(cfg.Crawler, ch, provider, docs, slog.Default())

	fmt.Printf("Crawling %s for bot %d (depth %d)...\n", startURL, botID, cfg.Crawler.MaxDepth)
	result, err := crawl.Crawl(ctx, botID, startURL)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Visited links:")
	for i, link := range result.Links {
		fmt.Printf("%d. %s\n", i+1, link)
	}
	fmt.Println()
	fmt.Printf("Pages visited: %d\n", result.PagesVisited)
	fmt.Printf("Chunks stored: %d\n", result.ChunksStored)
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
}
