package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebot/sitebot/internal/chunker"
	"github.com/sitebot/sitebot/internal/config"
	"github.com/sitebot/sitebot/internal/store"
)

// runeCodec treats every rune as one token.
type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

func (runeCodec) Count(text string) int { return len([]rune(text)) }

// fakeEmbedder returns a fixed vector, optionally failing for chunks
// containing a marker substring.
type fakeEmbedder struct {
	failOn string
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// memStore records saved documents in order.
type memStore struct {
	mu   sync.Mutex
	docs []store.Document
}

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) SaveDocument(_ context.Context, doc *store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *memStore) SearchSimilar(context.Context, int, []float32, float64, int) ([]store.ScoredDocument, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func page(title, body string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><p>%s</p>", title, body)
	for _, link := range links {
		fmt.Fprintf(&b, `<a href=%q>%s</a>`, link, link)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestCrawler(depth int, embedder Embedder, docs store.DocumentStore) *Crawler {
	cfg := config.CrawlerConfig{
		MaxDepth:     depth,
		FetchTimeout: 5 * time.Second,
		DeniedHosts:  []string{"youtube.com", "facebook.com", "twitter.com"},
	}
	ch := chunker.New(runeCodec{}, 4096)
	return New(cfg, ch, embedder, docs, slog.Default())
}

func TestCrawl_TwoPageSite(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "Welcome to our store, browse the catalogue.", "/hours"))
	})
	mux.HandleFunc("/hours", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Hours", "We are open 9-5 on weekdays."))
	})

	docs := &memStore{}
	c := newTestCrawler(2, &fakeEmbedder{}, docs)

	result, err := c.Crawl(context.Background(), 7, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesVisited)
	assert.Equal(t, []string{srv.URL + "/hours"}, result.Links)
	require.Len(t, docs.docs, 2)
	for _, doc := range docs.docs {
		assert.Equal(t, 7, doc.BotID)
		assert.Len(t, doc.Embedding, 3)
	}
	assert.Equal(t, srv.URL, docs.docs[0].URL)
	assert.Equal(t, srv.URL+"/hours", docs.docs[1].URL)
}

func TestCrawl_CycleVisitsEachURLOnce(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	count := func(r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		count(r)
		fmt.Fprint(w, page("A", "Page A content.", "/b"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		count(r)
		fmt.Fprint(w, page("B", "Page B content.", "/"))
	})

	c := newTestCrawler(5, &fakeEmbedder{}, &memStore{})

	result, err := c.Crawl(context.Background(), 1, srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesVisited)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["/"])
	assert.Equal(t, 1, hits["/b"])
}

func TestCrawl_DepthBound(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	handler := func(body string, links ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[r.URL.Path]++
			mu.Unlock()
			fmt.Fprint(w, page(r.URL.Path, body, links...))
		}
	}
	mux.HandleFunc("/", handler("Level one.", "/two"))
	mux.HandleFunc("/two", handler("Level two.", "/three"))
	mux.HandleFunc("/three", handler("Level three."))

	c := newTestCrawler(2, &fakeEmbedder{}, &memStore{})

	result, err := c.Crawl(context.Background(), 1, srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesVisited)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, hits["/three"], "page beyond the depth budget must not be fetched")
	// The link to /three is still discovered and reported.
	assert.Contains(t, result.Links, srv.URL+"/three")
}

func TestCrawl_FetchErrorContinuesWithSiblings(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "Front page.", "/missing", "/ok"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("OK", "Sibling survives the broken page."))
	})

	docs := &memStore{}
	c := newTestCrawler(2, &fakeEmbedder{}, docs)

	result, err := c.Crawl(context.Background(), 1, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesVisited)
	urls := make([]string, 0, len(docs.docs))
	for _, doc := range docs.docs {
		urls = append(urls, doc.URL)
	}
	assert.Contains(t, urls, srv.URL+"/ok")
}

func TestCrawl_EmbeddingFailureSkipsChunkOnly(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "POISON text on the front page.", "/fine"))
	})
	mux.HandleFunc("/fine", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Fine", "This page embeds without trouble."))
	})

	docs := &memStore{}
	c := newTestCrawler(2, &fakeEmbedder{failOn: "POISON"}, docs)

	result, err := c.Crawl(context.Background(), 1, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesVisited)
	require.Len(t, docs.docs, 1)
	assert.Equal(t, srv.URL+"/fine", docs.docs[0].URL)
	assert.Equal(t, 1, result.ChunksStored)
}

func TestCrawl_DuplicateContentStoredOnce(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	same := page("Mirror", "Identical body served under two URLs.")
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "Front page text.", "/a", "/b"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, same)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, same)
	})

	docs := &memStore{}
	c := newTestCrawler(2, &fakeEmbedder{}, docs)

	_, err := c.Crawl(context.Background(), 1, srv.URL)
	require.NoError(t, err)

	// Three pages fetched, but the mirror's text is stored only once.
	require.Len(t, docs.docs, 2)
}

func TestCrawl_DeniedHostNotFetched(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "Front.", "https://youtube.com/watch?v=x", "ftp://example.com/file"))
	})

	c := newTestCrawler(3, &fakeEmbedder{}, &memStore{})

	result, err := c.Crawl(context.Background(), 1, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesVisited)
	assert.Empty(t, result.Links)
}

func TestCrawl_Cancellation(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Home", "Front."))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCrawler(2, &fakeEmbedder{}, &memStore{})

	_, err := c.Crawl(ctx, 1, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
