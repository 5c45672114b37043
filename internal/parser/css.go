package parser

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// HTMLParser extracts listings and articles using CSS selectors via goquery,
// with XPath for sibling lookups.
type HTMLParser struct {
	sel    config.SelectorConfig
	logger *slog.Logger
}

// NewHTMLParser creates a parser for one source's selectors.
func NewHTMLParser(sel config.SelectorConfig, logger *slog.Logger) *HTMLParser {
	return &HTMLParser{
		sel:    sel,
		logger: logger.With("component", "html_parser"),
	}
}

// ParseListing extracts the article entries and the next-page link of a
// listing page. Links are resolved against the final URL of the response
// and repeated links are reported once.
func (p *HTMLParser) ParseListing(resp *types.Response) (*Listing, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	base, err := url.Parse(resp.FinalURL)
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	listing := &Listing{}
	seen := make(map[string]bool)

	doc.Find(p.sel.Entry).Each(func(_ int, entry *goquery.Selection) {
		link := entry
		if !entry.Is("a") {
			link = entry.Find(p.sel.Link).First()
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		abs := resolveURL(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true

		e := Entry{
			URL:  abs,
			Text: strings.TrimSpace(link.Text()),
		}
		if p.sel.DateHint != "" && len(entry.Nodes) > 0 {
			e.DateHint = SiblingText(entry.Nodes[0], p.sel.DateHint)
		}
		listing.Entries = append(listing.Entries, e)
	})

	if p.sel.Next != "" {
		if href, ok := doc.Find(p.sel.Next).First().Attr("href"); ok {
			listing.Next = resolveURL(base, href)
		}
	}

	p.logger.Debug("listing parsed",
		"url", resp.FinalURL,
		"entries", len(listing.Entries),
		"next", listing.Next,
	)
	return listing, nil
}

// ParseArticle extracts the title and the publication date of an article
// page. The date is taken from the first paragraph that mentions one, then
// from the configured date selectors.
func (p *HTMLParser) ParseArticle(resp *types.Response) (*ArticlePage, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}

	page := &ArticlePage{
		Title: FirstText(doc, p.sel.Title),
	}

	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		html, _ := goquery.OuterHtml(s)
		if d, ok := FindDate(html); ok {
			page.Date = d
			return false
		}
		return true
	})

	if page.Date == "" {
		for _, selector := range p.sel.Date {
			if d, ok := FindDate(doc.Find(selector).First().Text()); ok {
				page.Date = d
				break
			}
		}
	}
	return page, nil
}

// FirstText returns the trimmed text of the first selector in the chain
// that matches a non-blank element.
func FirstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// resolveURL makes href absolute. Anchors, non-HTTP schemes and unparsable
// links yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
