package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>Draft Pod</title>
  <item>
    <title>Lottery mock draft 4.0</title>
    <guid>ep-42</guid>
    <link>https://example.com/ep-42</link>
    <description><![CDATA[<p>We walk through the <b>lottery</b> picks.</p>]]></description>
    <pubDate>Mon, 15 Jun 2026 10:00:00 GMT</pubDate>
    <enclosure url="https://example.com/ep-42.mp3" type="audio/mpeg" length="1024"/>
    <itunes:duration>1:02:03</itunes:duration>
    <itunes:season>3</itunes:season>
    <itunes:episode>42</itunes:episode>
  </item>
  <item>
    <title>No GUID entry</title>
    <link>https://example.com/no-guid</link>
    <description>Falls back to the link for identity.</description>
    <pubDate>Mon, 15 Jun 2026 09:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Unusable entry</title>
    <description>No GUID, no link.</description>
  </item>
</channel>
</rss>`

func TestFetchNormalizesEntries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer ts.Close()

	f := NewFetcher(0, 0, 0)
	entries, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (unusable dropped), got %d", len(entries))
	}

	e := entries[0]
	if e.ExternalID != "ep-42" {
		t.Errorf("expected external ID ep-42, got %q", e.ExternalID)
	}
	if e.Title != "Lottery mock draft 4.0" {
		t.Errorf("unexpected title %q", e.Title)
	}
	if e.AudioURL != "https://example.com/ep-42.mp3" {
		t.Errorf("unexpected audio URL %q", e.AudioURL)
	}
	if e.Description != "We walk through the lottery picks." {
		t.Errorf("expected stripped description, got %q", e.Description)
	}
	if e.DurationSeconds == nil || *e.DurationSeconds != 3723 {
		t.Errorf("expected duration 3723, got %v", e.DurationSeconds)
	}
	if e.Season == nil || *e.Season != 3 {
		t.Errorf("expected season 3, got %v", e.Season)
	}
	if e.EpisodeNumber == nil || *e.EpisodeNumber != 42 {
		t.Errorf("expected episode 42, got %v", e.EpisodeNumber)
	}
	want := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	if !e.PublishedAt.Equal(want) {
		t.Errorf("expected published %v, got %v", want, e.PublishedAt)
	}

	if entries[1].ExternalID != "https://example.com/no-guid" {
		t.Errorf("expected link fallback for external ID, got %q", entries[1].ExternalID)
	}
}

func TestFetchRejectsNonHTTPURL(t *testing.T) {
	f := NewFetcher(0, 0, 0)
	for _, u := range []string{"file:///etc/passwd", "ftp://example.com/feed", "not a url"} {
		entries, err := f.Fetch(context.Background(), u)
		if err != nil {
			t.Errorf("Fetch(%q): unexpected error %v", u, err)
		}
		if entries != nil {
			t.Errorf("Fetch(%q): expected no entries, got %d", u, len(entries))
		}
	}
}

func TestFetchRespectsMaxPerFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
			<item><guid>a</guid><title>A</title></item>
			<item><guid>b</guid><title>B</title></item>
			<item><guid>c</guid><title>C</title></item>
		</channel></rss>`))
	}))
	defer ts.Close()

	f := NewFetcher(0, 0, 2)
	entries, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with maxPerFeed=2, got %d", len(entries))
	}
}

func TestFetchError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := NewFetcher(0, 0, 0)
	if _, err := f.Fetch(context.Background(), ts.URL); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestParseDuration(t *testing.T) {
	sec := func(n int) *int { return &n }
	cases := []struct {
		in   string
		want *int
	}{
		{"1:02:03", sec(3723)},
		{"45:30", sec(2730)},
		{"2700", sec(2700)},
		{" 10:00 ", sec(600)},
		{"", nil},
		{"not-a-time", nil},
		{"1:2:3:4", nil},
		{"-90", nil},
	}
	for _, tc := range cases {
		got := ParseDuration(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ParseDuration(%q) = %d, want nil", tc.in, *got)
		case tc.want != nil && got == nil:
			t.Errorf("ParseDuration(%q) = nil, want %d", tc.in, *tc.want)
		case tc.want != nil && got != nil && *got != *tc.want:
			t.Errorf("ParseDuration(%q) = %d, want %d", tc.in, *got, *tc.want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text", "plain text"},
		{"line&nbsp;break &amp; more", "line break & more"},
		{"  <div>\n  spaced \n out  </div> ", "spaced out"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripHTML(tc.in); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
