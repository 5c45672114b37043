package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request tags.
const (
	TagListing = "listing"
	TagArticle = "article"
	TagFeed    = "feed"
)

// Request represents a page to be fetched for a source.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// MaxRetries is the maximum number of retries for this request.
	MaxRetries int

	// RetryCount tracks the current retry attempt.
	RetryCount int

	// Timeout overrides the fetcher timeout for this request.
	Timeout time.Duration

	// Tag categorizes this request (listing, article, feed).
	Tag string

	// Source is the name of the source that issued the request.
	Source string

	// Category is the label of the listing this request was discovered on.
	Category string

	// ParentURL tracks which page this request was discovered on.
	ParentURL string

	CreatedAt time.Time
}

// NewRequest creates a new GET Request.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%q: %w", rawURL, ErrInvalidURL)
	}

	return &Request{
		URL:        u,
		Method:     http.MethodGet,
		Headers:    make(http.Header),
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
