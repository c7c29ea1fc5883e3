package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JonathanBechtel/draftwire/internal/database"
	"github.com/JonathanBechtel/draftwire/internal/ingest"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeRunner struct {
	result *ingest.CycleResult
	err    error
	calls  int
}

func (f *fakeRunner) RunCycle(ctx context.Context) (*ingest.CycleResult, error) {
	f.calls++
	return f.result, f.err
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Dashboard") {
		t.Error("expected 'Dashboard' in response body")
	}
}

func TestIngestRoute(t *testing.T) {
	db := openTestDB(t)
	runner := &fakeRunner{result: &ingest.CycleResult{
		SourcesProcessed: 2,
		ItemsAdded:       3,
		ItemsSkipped:     1,
		MentionsAdded:    4,
	}}
	srv, err := New(db, runner)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("POST", "/ingest", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 cycle run, got %d", runner.calls)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if got := loc.Query().Get("added"); got != "3" {
		t.Errorf("expected added=3 in redirect, got %q", got)
	}
	if got := loc.Query().Get("mentions"); got != "4" {
		t.Errorf("expected mentions=4 in redirect, got %q", got)
	}

	// Cycle should have been recorded.
	runs, err := db.RecentRuns(5)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].ItemsAdded != 3 || runs[0].SourcesProcessed != 2 {
		t.Errorf("unexpected run record: %+v", runs[0])
	}
}

func TestIngestRouteCycleError(t *testing.T) {
	db := openTestDB(t)
	runner := &fakeRunner{err: errors.New("no sources")}
	srv, err := New(db, runner)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("POST", "/ingest", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Location"), "cycle_error=") {
		t.Errorf("expected cycle_error in redirect, got %q", rec.Header().Get("Location"))
	}
}

func TestIngestRouteNoRunner(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("POST", "/ingest", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestSourcesRoutes(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	// Add a source via the form.
	form := url.Values{
		"name":     {"Draft Express"},
		"feed_url": {"https://example.com/feed.xml"},
		"kind":     {"news"},
	}
	req := httptest.NewRequest("POST", "/sources/add", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}

	sources, err := db.AllSources()
	if err != nil {
		t.Fatalf("all sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "Draft Express" {
		t.Fatalf("expected added source, got %+v", sources)
	}

	// Toggle it off.
	req = httptest.NewRequest("POST", "/sources/"+itoa(sources[0].ID)+"/toggle", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	src, err := db.GetSource(sources[0].ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if src.IsActive {
		t.Error("expected source inactive after toggle")
	}

	// List page renders it.
	req = httptest.NewRequest("GET", "/sources", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Draft Express") {
		t.Error("expected source name in sources page")
	}

	// Delete it.
	req = httptest.NewRequest("POST", "/sources/"+itoa(sources[0].ID)+"/delete", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	sources, _ = db.AllSources()
	if len(sources) != 0 {
		t.Errorf("expected no sources after delete, got %d", len(sources))
	}
}

func TestItemsRoute(t *testing.T) {
	db := openTestDB(t)
	sid, err := db.InsertSource("Feed", "https://example.com/rss", database.SourceKindNews, false, 0)
	if err != nil {
		t.Fatalf("insert source: %v", err)
	}
	_, err = db.PersistBatch(sid, []database.ContentItem{{
		ExternalID:  "guid-1",
		Kind:        database.SourceKindNews,
		Title:       "Top prospect rising up draft boards",
		Summary:     "A look at the latest risers.",
		Tag:         "rankings",
		MediaURL:    "https://example.com/article",
		PublishedAt: time.Now(),
	}}, time.Now())
	if err != nil {
		t.Fatalf("persist batch: %v", err)
	}

	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/items", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Top prospect rising up draft boards") {
		t.Error("expected item title in items page")
	}
}

func TestPlayersRoutes(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	form := url.Values{
		"name":     {"Cameron Boozer"},
		"position": {"PF"},
		"school":   {"Duke"},
		"notes":    {"**Elite** rebounder."},
	}
	req := httptest.NewRequest("POST", "/players/add", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/players", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Cameron Boozer") {
		t.Error("expected player name in players page")
	}
	// Notes render as markdown.
	if !strings.Contains(body, "<strong>Elite</strong>") {
		t.Error("expected rendered markdown in notes")
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}

func TestFormatDuration(t *testing.T) {
	sec := func(n int) *int { return &n }
	cases := []struct {
		in   *int
		want string
	}{
		{nil, ""},
		{sec(75), "1:15"},
		{sec(3723), "1:02:03"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.in); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
