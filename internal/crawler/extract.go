package crawler

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ExtractText returns the visible text of a page. Readability extraction is
// tried first to strip navigation and boilerplate; pages it cannot handle
// (index pages, sparse markup) fall back to a plain DOM text walk.
func ExtractText(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}
	return domText(body)
}

// domText collects the text nodes of the whole document, one line per node,
// skipping script and style subtrees.
func domText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript"):
			return
		case n.Type == html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(lines, "\n")
}

// ExtractLinks returns the page's anchor targets resolved against base, in
// the order they appear in the markup. Unparseable hrefs are dropped.
func ExtractLinks(body []byte, base *url.URL) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" || attr.Val == "" {
					continue
				}
				resolved, err := base.Parse(attr.Val)
				if err != nil {
					continue
				}
				resolved.Fragment = ""
				links = append(links, resolved.String())
				break
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links
}
