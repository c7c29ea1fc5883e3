package feed

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML converts feed HTML to plain text with entities decoded and
// whitespace collapsed.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(html.UnescapeString(s))
	}
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
