package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestDOMText_SkipsScriptAndStyle(t *testing.T) {
	body := []byte(`<html><head><style>body{color:red}</style></head>
<body><h1>Opening Hours</h1><script>alert("nope")</script><p>We are open 9-5.</p></body></html>`)

	text := domText(body)

	assert.Contains(t, text, "Opening Hours")
	assert.Contains(t, text, "We are open 9-5.")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
}

func TestExtractText_NeverEmpty(t *testing.T) {
	// A page readability refuses to treat as an article still yields its
	// visible text through the DOM fallback.
	body := []byte(`<html><body><a href="/a">A</a></body></html>`)

	text := ExtractText(body, mustParse(t, "https://example.com/"))

	assert.Contains(t, text, "A")
}

func TestExtractLinks_OrderAndResolution(t *testing.T) {
	body := []byte(`<html><body>
<a href="/first">one</a>
<a href="second.html">two</a>
<a href="https://other.example.org/abs">three</a>
<a href="#section">same page</a>
</body></html>`)
	base := mustParse(t, "https://example.com/dir/page.html")

	links := ExtractLinks(body, base)

	assert.Equal(t, []string{
		"https://example.com/first",
		"https://example.com/dir/second.html",
		"https://other.example.org/abs",
		"https://example.com/dir/page.html",
	}, links)
}

func TestExtractLinks_IgnoresAnchorsWithoutHref(t *testing.T) {
	body := []byte(`<html><body><a name="top">anchor</a><a href="/real">real</a></body></html>`)

	links := ExtractLinks(body, mustParse(t, "https://example.com/"))

	assert.Equal(t, []string{"https://example.com/real"}, links)
}

func TestExtractLinks_KeepsDuplicates(t *testing.T) {
	// Deduplication belongs to the crawl frontier, not the extractor.
	body := []byte(`<html><body><a href="/page">a</a><a href="/page">b</a></body></html>`)

	links := ExtractLinks(body, mustParse(t, "https://example.com/"))

	assert.Equal(t, []string{
		"https://example.com/page",
		"https://example.com/page",
	}, links)
}
