package crawler

import (
	"net/url"
	"strings"
)

// LinkFilter decides which discovered links are worth following. Only
// http/https links are followed, and hosts on the denylist (video and social
// platforms by default) are skipped so the depth budget is spent on content
// pages.
type LinkFilter struct {
	deniedHosts []string
}

// NewLinkFilter builds a filter from a list of denied host suffixes.
func NewLinkFilter(deniedHosts []string) *LinkFilter {
	denied := make([]string, 0, len(deniedHosts))
	for _, h := range deniedHosts {
		denied = append(denied, strings.ToLower(strings.TrimSpace(h)))
	}
	return &LinkFilter{deniedHosts: denied}
}

// Allowed reports whether the link should be followed.
func (f *LinkFilter) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, denied := range f.deniedHosts {
		if host == denied || strings.HasSuffix(host, "."+denied) {
			return false
		}
	}
	return true
}
