package parser

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// SiblingText evaluates an XPath expression relative to node and returns
// the trimmed inner text of the first match. Invalid expressions and misses
// yield "".
func SiblingText(node *html.Node, expr string) string {
	found, err := htmlquery.Query(node, expr)
	if err != nil || found == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(found))
}
