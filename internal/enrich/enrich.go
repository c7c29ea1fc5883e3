// Package enrich fetches linked article pages and extracts readable
// text, so thin feed descriptions can be classified with real content.
package enrich

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// minUsableText is the shortest extraction worth using; anything less
// is usually boilerplate.
const minUsableText = 140

// Enricher fetches article pages over HTTP.
type Enricher struct {
	client *http.Client
}

// New creates an Enricher with the given request timeout.
func New(timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// ArticleText fetches the page and returns its readable text, or ""
// when anything goes wrong. Enrichment is strictly best-effort.
func (e *Enricher) ArticleText(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "draftwire/1.0 (content enrichment)")

	resp, err := e.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("enrichment fetch for %s returned %d", pageURL, resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minUsableText {
		return ""
	}
	return text
}
