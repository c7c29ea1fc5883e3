// Package relevance gates feed entries for sources that are not
// draft-focused: a zero-cost keyword tier first, then an AI check.
package relevance

import (
	"context"
	"log"
	"strings"
)

// Checker is the AI fallback tier. Any error it returns is treated as
// "not relevant" so a flaky remote dependency never blocks a cycle and
// never admits unverified content.
type Checker interface {
	CheckRelevance(ctx context.Context, title, description string) (bool, error)
}

// DefaultKeywords is the fixed vocabulary of draft terms used when the
// config does not override it.
var DefaultKeywords = []string{
	"nba draft",
	"mock draft",
	"draft pick",
	"draft lottery",
	"lottery pick",
	"draft combine",
	"draft stock",
	"scouting report",
	"big board",
	"draft prospect",
	"first-round pick",
	"one-and-done",
}

// Filter is the two-tier relevance gate.
type Filter struct {
	keywords []string
	checker  Checker
}

// NewFilter builds a filter. Empty keywords fall back to
// DefaultKeywords; checker may be nil to disable the AI tier.
func NewFilter(keywords []string, checker Checker) *Filter {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &Filter{keywords: normalized, checker: checker}
}

// IsRelevant reports whether the entry should be admitted. The keyword
// tier is case-insensitive substring match over title and description;
// only on a miss is the AI tier consulted.
func (f *Filter) IsRelevant(ctx context.Context, title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, kw := range f.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}

	if f.checker == nil {
		return false
	}
	relevant, err := f.checker.CheckRelevance(ctx, title, description)
	if err != nil {
		log.Printf("relevance check failed, treating as not relevant: %v", err)
		return false
	}
	return relevant
}
