package feed

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

const defaultMaxPerFeed = 50

// Entry is a normalized feed entry. It is validated once at the fetch
// boundary: ExternalID is always non-empty, PublishedAt is always set.
type Entry struct {
	ExternalID      string
	Title           string
	Description     string
	Link            string
	AudioURL        string
	ArtworkURL      string
	PublishedAt     time.Time
	DurationSeconds *int
	Season          *int
	EpisodeNumber   *int
}

// Fetcher retrieves and normalizes RSS/Atom feeds.
type Fetcher struct {
	parser     *gofeed.Parser
	maxPerFeed int
}

// NewFetcher creates a Fetcher with phase-split network timeouts:
// connectTimeout bounds dialing and TLS setup, readTimeout bounds the
// wait for response headers, so a stalled server cannot hang a cycle.
func NewFetcher(connectTimeout, readTimeout time.Duration, maxPerFeed int) *Fetcher {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 20 * time.Second
	}
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}

	client := &http.Client{
		Timeout: connectTimeout + readTimeout,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: readTimeout,
		},
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "draftwire/1.0 (feed ingestion)"

	return &Fetcher{parser: parser, maxPerFeed: maxPerFeed}
}

// Fetch retrieves a feed and returns its normalized entries. Non-HTTP(S)
// URLs are rejected without a network call and yield an empty result.
// Entries with no usable external ID are dropped.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	u, err := url.Parse(feedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		log.Printf("rejecting non-HTTP feed URL %q", feedURL)
		return nil, nil
	}

	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, item := range parsed.Items {
		if len(entries) >= f.maxPerFeed {
			break
		}
		if e := normalizeItem(item); e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

func normalizeItem(item *gofeed.Item) *Entry {
	externalID := strings.TrimSpace(item.GUID)
	if externalID == "" {
		externalID = strings.TrimSpace(item.Link)
	}
	if externalID == "" {
		// No stable identity: unusable.
		return nil
	}

	e := &Entry{
		ExternalID:  externalID,
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		PublishedAt: publishedTime(item),
		AudioURL:    audioURL(item),
	}

	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	e.Description = StripHTML(desc)

	if item.Image != nil {
		e.ArtworkURL = item.Image.URL
	}
	if it := item.ITunesExt; it != nil {
		e.DurationSeconds = ParseDuration(it.Duration)
		if n, err := strconv.Atoi(it.Season); err == nil {
			e.Season = &n
		}
		if n, err := strconv.Atoi(it.Episode); err == nil {
			e.EpisodeNumber = &n
		}
		if e.ArtworkURL == "" {
			e.ArtworkURL = it.Image
		}
	}
	return e
}

// publishedTime picks the entry timestamp: structured published time,
// then updated time, then a permissive parse of the raw date header,
// then "now". Entries are never dropped for an unparseable date.
func publishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	raw := item.Published
	if raw == "" {
		raw = item.Updated
	}
	if raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t
		}
	}
	return time.Now()
}

// audioURL returns the first enclosure whose declared type marks it as
// audio, falling back to a known audio file extension when the type is
// missing. Empty means the entry carries no audio.
func audioURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL
		}
	}
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" || enc.Type != "" {
			continue
		}
		lower := strings.ToLower(enc.URL)
		for _, ext := range []string{".mp3", ".m4a", ".ogg", ".wav"} {
			if strings.HasSuffix(lower, ext) {
				return enc.URL
			}
		}
	}
	return ""
}

// ParseDuration converts a feed duration string to seconds. Accepted
// forms are HH:MM:SS, MM:SS, and a raw integer number of seconds.
// Anything else yields nil (unknown), never an error.
func ParseDuration(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if !strings.Contains(s, ":") {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil
		}
		return &n
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}
