// Package crawler performs bounded-depth, cycle-safe traversal of a website
// and feeds each page's text through the chunk, embed, store pipeline.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sitebot/sitebot/internal/chunker"
	"github.com/sitebot/sitebot/internal/config"
	"github.com/sitebot/sitebot/internal/store"
)

// maxBodyBytes caps how much of a response is read per page.
const maxBodyBytes = 10 << 20

// Embedder turns a chunk of text into its embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Crawler owns one site traversal at a time. Traversal is depth-first in
// markup order, visits each URL at most once per run, and uses an explicit
// work list so depth is bounded by configuration, not by the call stack.
type Crawler struct {
	client   *http.Client
	chunker  *chunker.Chunker
	embedder Embedder
	store    store.DocumentStore
	filter   *LinkFilter
	maxDepth int
	logger   *slog.Logger
}

// New builds a crawler from configuration and its pipeline collaborators.
func New(cfg config.CrawlerConfig, ch *chunker.Chunker, embedder Embedder, docs store.DocumentStore, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		chunker:  ch,
		embedder: embedder,
		store:    docs,
		filter:   NewLinkFilter(cfg.DeniedHosts),
		maxDepth: cfg.MaxDepth,
		logger:   logger,
	}
}

// Result reports what one crawl run discovered and stored.
type Result struct {
	// Links lists every followed-candidate link in discovery order.
	Links        []string
	PagesVisited int
	ChunksStored int
}

// entry is one pending page in the crawl frontier. Depth is the remaining
// budget: pages at depth 0 are never fetched.
type entry struct {
	url   string
	depth int
}

// Crawl traverses the site rooted at startURL on behalf of botID. Page-level
// fetch, parse, embedding and storage failures are logged and skipped; they
// never abort the run. The only run-level failure is context cancellation.
func (c *Crawler) Crawl(ctx context.Context, botID int, startURL string) (*Result, error) {
	result := &Result{}
	stack := []entry{{url: startURL, depth: c.maxDepth}}
	seen := map[string]bool{startURL: true}
	seenText := make(map[string]bool)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current.depth <= 0 {
			continue
		}

		body, pageURL, err := c.fetch(ctx, current.url)
		if err != nil {
			c.logger.Warn("page fetch failed", "url", current.url, "error", err)
			continue
		}
		result.PagesVisited++

		text := ExtractText(body, pageURL)
		// Pages whose extracted text exactly matches an earlier page are
		// treated as already seen, so mirror URLs are not stored twice.
		if text != "" && !seenText[text] {
			seenText[text] = true
			result.ChunksStored += c.indexPage(ctx, botID, current.url, text)
		}

		links := ExtractLinks(body, pageURL)
		fresh := make([]string, 0, len(links))
		for _, link := range links {
			if !c.filter.Allowed(link) || seen[link] {
				continue
			}
			seen[link] = true
			result.Links = append(result.Links, link)
			fresh = append(fresh, link)
		}
		// Push in reverse so the first link in the markup is visited first.
		for i := len(fresh) - 1; i >= 0; i-- {
			stack = append(stack, entry{url: fresh[i], depth: current.depth - 1})
		}
	}

	c.logger.Info("crawl complete",
		"bot_id", botID,
		"start_url", startURL,
		"pages", result.PagesVisited,
		"links", len(result.Links),
		"chunks", result.ChunksStored,
	)
	return result, nil
}

// indexPage chunks the page text and embeds and stores each chunk. A chunk
// whose embedding or write fails is skipped without affecting the rest of
// the page. Returns the number of chunks stored.
func (c *Crawler) indexPage(ctx context.Context, botID int, pageURL, text string) int {
	stored := 0
	for _, chunk := range c.chunker.Split(text) {
		vector, err := c.embedder.Embed(ctx, chunk)
		if err != nil {
			c.logger.Warn("embedding failed, skipping chunk", "url", pageURL, "error", err)
			continue
		}
		doc := &store.Document{
			BotID:     botID,
			URL:       pageURL,
			Text:      chunk,
			Embedding: vector,
		}
		if err := c.store.SaveDocument(ctx, doc); err != nil {
			c.logger.Warn("store write failed, skipping chunk", "url", pageURL, "error", err)
			continue
		}
		stored++
	}
	return stored
}

// fetch retrieves one page, following redirects, and returns the body along
// with the final URL for link resolution.
func (c *Crawler) fetch(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, err
	}
	return body, resp.Request.URL, nil
}
