package engine

import (
	"net/url"
	"strings"
	"sync"
)

// visited is the set of canonical URLs already queued. The engine keeps one
// only when engine.dedup_urls is set: by default two seeds sharing a product
// each emit their own record.
type visited struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func newVisited(capacity int) *visited {
	return &visited{urls: make(map[string]struct{}, capacity)}
}

// MarkIfNew records rawURL and reports whether it was not already present.
// Concurrent callers offering the same URL see exactly one true.
func (v *visited) MarkIfNew(rawURL string) bool {
	key := canonicalURL(rawURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[key]; ok {
		return false
	}
	v.urls[key] = struct{}{}
	return true
}

// Len returns the number of distinct URLs recorded.
func (v *visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// canonicalURL maps the spellings of one catalog page to a single key.
// Host case, default ports, fragments, query order and a trailing slash are
// ignored, and ?start=0 is the first listing page.
func canonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		if q.Get("start") == "0" {
			q.Del("start")
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""
	return u.String()
}
