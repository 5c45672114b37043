package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Deduplicator remembers canonical URLs seen during one collection run.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates a new Deduplicator with the given estimated capacity.
func NewDeduplicator(estimatedCapacity int) *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// IsSeen reports whether the URL (after canonicalization) has been seen.
func (d *Deduplicator) IsSeen(rawURL string) bool {
	hash := hashURL(CanonicalizeURL(rawURL))

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[hash]
	return ok
}

// MarkSeen records the URL and reports whether it was new.
func (d *Deduplicator) MarkSeen(rawURL string) bool {
	hash := hashURL(CanonicalizeURL(rawURL))

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[hash]; ok {
		return false
	}
	d.seen[hash] = struct{}{}
	return true
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// CanonicalizeURL normalizes a URL for deduplication:
// - lowercases scheme and host
// - removes fragment
// - sorts query parameters
// - removes trailing slash (except root)
// - removes default ports (80 for http, 443 for https)
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Lowercase scheme and host
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Remove fragment
	u.Fragment = ""

	// Remove default ports
	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	// Sort query parameters
	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	// Remove trailing slash (except root "/")
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	// Ensure path is at least "/"
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// hashURL creates a compact hash of a URL string.
func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16]) // 128-bit hash
}
