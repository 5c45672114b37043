package pipeline

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/NewsLens/internal/parser"
	"github.com/IshaanNene/NewsLens/internal/types"
)

// --- Cleanup Middleware ---

// HTMLSanitizeMiddleware strips HTML tags from the title, category and
// date, decodes entities and collapses whitespace.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(a *types.Article) (*types.Article, error) {
	for _, col := range []string{types.ColTitle, types.ColCategory, types.ColDate} {
		s := a.Get(col)
		if s == "" {
			continue
		}
		cleaned := m.stripRe.ReplaceAllString(s, "")
		cleaned = html.UnescapeString(cleaned)
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		a.Set(col, cleaned)
	}
	return a, nil
}

// DateNormalizeMiddleware rewrites the date column as 2006-01-02. A date
// that cannot be parsed is cleared so the article counts as undated.
type DateNormalizeMiddleware struct {
	inFormats []string
}

func NewDateNormalizeMiddleware() *DateNormalizeMiddleware {
	return &DateNormalizeMiddleware{
		inFormats: []string{
			parser.DateLayout,
			time.RFC3339,
			time.RFC1123,
			time.RFC1123Z,
			time.RFC822,
			time.RFC822Z,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"02/01/2006",
			"January 2, 2006",
			"Jan 2, 2006",
			"2 January 2006",
			"2 Jan 2006",
			"Mon, 02 Jan 2006",
			"02-Jan-2006",
			"2006/01/02",
			"Mon Jan 2 15:04:05 2006",
		},
	}
}

func (m *DateNormalizeMiddleware) Name() string { return "date_normalize" }

func (m *DateNormalizeMiddleware) Process(a *types.Article) (*types.Article, error) {
	a.Date = m.normalize(a.Date)
	return a, nil
}

func (m *DateNormalizeMiddleware) normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, format := range m.inFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format(parser.DateLayout)
		}
	}
	if d, ok := parser.FindDate(s); ok {
		return d
	}
	return ""
}
