// Package parser extracts article links, titles and publication dates from
// news listing and article pages.
package parser

// Entry is one article link found on a listing page.
type Entry struct {
	URL string

	// Text is the link text.
	Text string

	// DateHint is the text next to the link that usually carries the
	// publication date. It may be empty.
	DateHint string
}

// Listing is the result of parsing one category listing page.
type Listing struct {
	Entries []Entry

	// Next is the absolute URL of the next listing page, if any.
	Next string
}

// ArticlePage holds the fields extracted from an article page.
type ArticlePage struct {
	Title string

	// Date is normalized to 2006-01-02, or empty when no date was found.
	Date string
}
