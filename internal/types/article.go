package types

import (
	"fmt"
	"strconv"
	"time"
)

// Column names of the article schema, in canonical order.
const (
	ColTitle     = "title"
	ColURL       = "url"
	ColNewspaper = "newspaper"
	ColCategory  = "category"
	ColDate      = "date"
	ColTimestamp = "timestamp"

	ColCluster = "cluster"
	ColX       = "x"
	ColY       = "y"
)

// ArticleColumns is the schema shared by daily batch files, the unified dataset
// and the archival snapshots.
var ArticleColumns = []string{ColTitle, ColURL, ColNewspaper, ColCategory, ColDate, ColTimestamp}

// ClusteredColumns is the schema of the clustered dataset.
var ClusteredColumns = append(append([]string(nil), ArticleColumns...), ColCluster, ColX, ColY)

// Article represents a single collected news article.
type Article struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Newspaper string `json:"newspaper"`
	Category  string `json:"category"`

	// Date is the publication date, normalized to 2006-01-02 when parseable.
	// Empty when no date could be found on the page.
	Date string `json:"date"`

	// Timestamp is the collection instant.
	Timestamp time.Time `json:"timestamp"`
}

// NewArticle creates an Article stamped with the current collection time.
func NewArticle(sourceURL string) *Article {
	return &Article{
		URL:       sourceURL,
		Timestamp: time.Now(),
	}
}

// Get returns a field by column name.
func (a *Article) Get(col string) string {
	switch col {
	case ColTitle:
		return a.Title
	case ColURL:
		return a.URL
	case ColNewspaper:
		return a.Newspaper
	case ColCategory:
		return a.Category
	case ColDate:
		return a.Date
	case ColTimestamp:
		if a.Timestamp.IsZero() {
			return ""
		}
		return a.Timestamp.Format(time.RFC3339)
	}
	return ""
}

// Set sets a text field by column name. Unknown columns are ignored.
func (a *Article) Set(col, value string) {
	switch col {
	case ColTitle:
		a.Title = value
	case ColURL:
		a.URL = value
	case ColNewspaper:
		a.Newspaper = value
	case ColCategory:
		a.Category = value
	case ColDate:
		a.Date = value
	}
}

// Record returns the article as a CSV row in ArticleColumns order.
func (a *Article) Record() []string {
	row := make([]string, len(ArticleColumns))
	for i, col := range ArticleColumns {
		row[i] = a.Get(col)
	}
	return row
}

// ArticleFromRecord builds an Article from a row whose layout is given by index,
// a column name to position mapping.
func ArticleFromRecord(row []string, index map[string]int) (*Article, error) {
	a := &Article{}
	for _, col := range ArticleColumns {
		pos, ok := index[col]
		if !ok || pos >= len(row) {
			return nil, fmt.Errorf("missing column %q: %w", col, ErrSchemaMismatch)
		}
		if col == ColTimestamp {
			if row[pos] == "" {
				continue
			}
			ts, err := parseTimestamp(row[pos])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			a.Timestamp = ts
			continue
		}
		a.Set(col, row[pos])
	}
	return a, nil
}

// parseTimestamp accepts RFC3339 as written by the collector, and the
// microsecond ISO layout older batch files used.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// ClusteredArticle is an article with its cluster assignment and 2D projection.
type ClusteredArticle struct {
	Article
	Cluster int     `json:"cluster"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Record returns the row in ClusteredColumns order.
func (c *ClusteredArticle) Record() []string {
	row := c.Article.Record()
	return append(row,
		strconv.Itoa(c.Cluster),
		strconv.FormatFloat(c.X, 'g', -1, 64),
		strconv.FormatFloat(c.Y, 'g', -1, 64),
	)
}

// ClusteredFromRecord parses a clustered dataset row.
func ClusteredFromRecord(row []string, index map[string]int) (*ClusteredArticle, error) {
	a, err := ArticleFromRecord(row, index)
	if err != nil {
		return nil, err
	}
	c := &ClusteredArticle{Article: *a}

	get := func(col string) (string, error) {
		pos, ok := index[col]
		if !ok || pos >= len(row) {
			return "", fmt.Errorf("missing column %q: %w", col, ErrSchemaMismatch)
		}
		return row[pos], nil
	}

	s, err := get(ColCluster)
	if err != nil {
		return nil, err
	}
	if c.Cluster, err = strconv.Atoi(s); err != nil {
		return nil, fmt.Errorf("column %q: %w", ColCluster, err)
	}
	if s, err = get(ColX); err != nil {
		return nil, err
	}
	if c.X, err = strconv.ParseFloat(s, 64); err != nil {
		return nil, fmt.Errorf("column %q: %w", ColX, err)
	}
	if s, err = get(ColY); err != nil {
		return nil, err
	}
	if c.Y, err = strconv.ParseFloat(s, 64); err != nil {
		return nil, fmt.Errorf("column %q: %w", ColY, err)
	}
	return c, nil
}
