package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"
)

// Content tags. The classifier maps the model's human-readable label to
// this closed set; anything unrecognized becomes TagNews.
const (
	TagMockDraft      = "mock_draft"
	TagScoutingReport = "scouting_report"
	TagRankings       = "rankings"
	TagInterview      = "interview"
	TagAnalysis       = "analysis"
	TagNews           = "news"
)

// DefaultTag is the category used when classification fails or the
// label is unknown.
const DefaultTag = TagNews

var labelTags = map[string]string{
	"mock draft":      TagMockDraft,
	"mock_draft":      TagMockDraft,
	"scouting report": TagScoutingReport,
	"scouting_report": TagScoutingReport,
	"rankings":        TagRankings,
	"big board":       TagRankings,
	"interview":       TagInterview,
	"analysis":        TagAnalysis,
	"news":            TagNews,
}

// MapTag converts a model-returned label to a canonical tag.
func MapTag(label string) string {
	if tag, ok := labelTags[strings.ToLower(strings.TrimSpace(label))]; ok {
		return tag
	}
	return DefaultTag
}

// Analysis is the structured classification of one content entry.
type Analysis struct {
	Summary          string
	Tag              string
	MentionedPlayers []string
}

// Service is what the ingestion orchestrator depends on; it is an
// injected handle so tests can substitute a fake.
type Service interface {
	Analyze(ctx context.Context, title, description string) Analysis
	CheckRelevance(ctx context.Context, title, description string) (bool, error)
}

const classifySystemPrompt = `You classify NBA draft content for a prospect-tracking site.

Given a piece of content, respond with ONLY this JSON:
{
    "summary": "2-3 sentence summary of the content",
    "tag": "Mock Draft" | "Scouting Report" | "Rankings" | "Interview" | "Analysis" | "News",
    "mentioned_players": ["Full Name", ...]
}

Rules for mentioned_players:
- Full names only. Never partial surnames or nicknames.
- Only current draft-eligible prospects. Exclude coaches, analysts, executives, and established NBA players.
- Empty list if no prospects are mentioned.`

const relevanceSystemPrompt = `You decide whether sports content is about the NBA draft: prospects, mock drafts, scouting, the combine, lottery, or draft-eligible college/international players.

Respond with ONLY this JSON:
{"is_draft_relevant": true or false}`

const maxFallbackSummary = 280

// Client implements Service on top of a Provider.
type Client struct {
	provider  Provider
	maxTokens int
}

// NewClient creates a classification client. A nil provider is allowed:
// every Analyze call then degrades to the fallback and CheckRelevance
// reports an error.
func NewClient(provider Provider, maxTokens int) *Client {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Client{provider: provider, maxTokens: maxTokens}
}

// Analyze classifies one entry. It never fails: on any remote error or
// unparseable response the result degrades to a truncated fallback
// summary, the default tag, and no mentions.
func (c *Client) Analyze(ctx context.Context, title, description string) Analysis {
	if c.provider == nil {
		return fallbackAnalysis(title, description)
	}

	prompt := fmt.Sprintf("Title: %s\n\nContent:\n%s", title, truncate(description, 4000))
	response, err := c.provider.Generate(ctx, classifySystemPrompt, prompt, c.maxTokens)
	if err != nil {
		log.Printf("classification failed for %q: %v", title, err)
		return fallbackAnalysis(title, description)
	}

	parsed := ParseJSONResponse(response)
	if parsed == nil {
		log.Printf("unparseable classification response for %q", title)
		return fallbackAnalysis(title, description)
	}

	summary := strings.TrimSpace(getString(parsed, "summary", ""))
	if summary == "" {
		summary = fallbackSummary(title, description)
	}
	return Analysis{
		Summary:          summary,
		Tag:              MapTag(getString(parsed, "tag", "")),
		MentionedPlayers: getStringSlice(parsed, "mentioned_players"),
	}
}

// CheckRelevance asks the model whether the entry is draft-related.
// Callers treat any error as "not relevant".
func (c *Client) CheckRelevance(ctx context.Context, title, description string) (bool, error) {
	if c.provider == nil {
		return false, fmt.Errorf("no AI provider configured")
	}

	prompt := fmt.Sprintf("Title: %s\n\nContent:\n%s", title, truncate(description, 2000))
	response, err := c.provider.Generate(ctx, relevanceSystemPrompt, prompt, 64)
	if err != nil {
		return false, err
	}

	parsed := ParseJSONResponse(response)
	if parsed == nil {
		return false, fmt.Errorf("unparseable relevance response")
	}
	return getBool(parsed, "is_draft_relevant", false), nil
}

func fallbackAnalysis(title, description string) Analysis {
	return Analysis{
		Summary: fallbackSummary(title, description),
		Tag:     DefaultTag,
	}
}

func fallbackSummary(title, description string) string {
	s := strings.TrimSpace(description)
	if s == "" {
		s = strings.TrimSpace(title)
	}
	return truncate(s, maxFallbackSummary)
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary
// so the result is always valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
