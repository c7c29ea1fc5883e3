// Package server is the thin admin surface over the ingestion engine:
// dashboard, source management, and a manual ingest trigger.
package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/JonathanBechtel/draftwire/internal/database"
	"github.com/JonathanBechtel/draftwire/internal/ingest"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// CycleRunner runs one ingestion cycle; the serve command injects the
// real ingestor here.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*ingest.CycleResult, error)
}

// Server is the admin HTTP server.
type Server struct {
	db     *database.DB
	runner CycleRunner
	pages  map[string]*template.Template
	mux    *http.ServeMux
}

// New creates a new Server. runner may be nil, in which case the
// ingest trigger reports unavailable.
func New(db *database.DB, runner CycleRunner) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"duration": formatDuration,
	}

	// Parse base template first; each page clones it so every page gets
	// its own {{define "content"}} and {{define "title"}}.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "sources.html", "items.html", "players.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, runner: runner, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/ingest", s.handleIngest)
	s.mux.HandleFunc("/sources", s.handleSources)
	s.mux.HandleFunc("/sources/add", s.handleAddSource)
	s.mux.HandleFunc("/sources/", s.handleSourceAction)
	s.mux.HandleFunc("/items", s.handleItems)
	s.mux.HandleFunc("/players", s.handlePlayers)
	s.mux.HandleFunc("/players/add", s.handleAddPlayer)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	runs, _ := s.db.RecentRuns(10)

	s.render(w, "index.html", map[string]any{
		"Stats":  stats,
		"Runs":   runs,
		"Flash":  flashFromQuery(r),
		"CanRun": s.runner != nil,
	})
}

// handleIngest runs one cycle and redirects to the dashboard with the
// counts in the query string.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if s.runner == nil {
		http.Error(w, "Ingestion not available", http.StatusServiceUnavailable)
		return
	}

	started := time.Now()
	result, err := s.runner.RunCycle(r.Context())
	if err != nil {
		log.Printf("ingestion cycle failed: %v", err)
		http.Redirect(w, r, "/?cycle_error="+url.QueryEscape(err.Error()), http.StatusFound)
		return
	}

	s.recordRun(started, result)

	params := url.Values{
		"added":    {strconv.Itoa(result.ItemsAdded)},
		"skipped":  {strconv.Itoa(result.ItemsSkipped)},
		"filtered": {strconv.Itoa(result.ItemsFiltered)},
		"mentions": {strconv.Itoa(result.MentionsAdded)},
		"errors":   {strconv.Itoa(len(result.Errors))},
	}
	http.Redirect(w, r, "/?"+params.Encode(), http.StatusFound)
}

func (s *Server) recordRun(started time.Time, result *ingest.CycleResult) {
	_, err := s.db.InsertRun(database.RunRecord{
		StartedAt:        started.UTC().Format(time.RFC3339),
		FinishedAt:       time.Now().UTC().Format(time.RFC3339),
		SourcesProcessed: result.SourcesProcessed,
		ItemsAdded:       result.ItemsAdded,
		ItemsSkipped:     result.ItemsSkipped,
		ItemsFiltered:    result.ItemsFiltered,
		MentionsAdded:    result.MentionsAdded,
		Errors:           result.Errors,
	})
	if err != nil {
		log.Printf("recording run: %v", err)
	}
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, _ := s.db.AllSources()
	s.render(w, "sources.html", map[string]any{
		"Sources": sources,
	})
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/sources", http.StatusFound)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	feedURL := strings.TrimSpace(r.FormValue("feed_url"))
	kind := r.FormValue("kind")
	if kind != database.SourceKindPodcast {
		kind = database.SourceKindNews
	}
	focused := r.FormValue("draft_focused") == "on"
	interval, _ := strconv.Atoi(r.FormValue("interval_minutes"))

	if name != "" && feedURL != "" {
		if _, err := s.db.InsertSource(name, feedURL, kind, focused, interval); err != nil {
			log.Printf("adding source: %v", err)
		}
	}
	http.Redirect(w, r, "/sources", http.StatusFound)
}

func (s *Server) handleSourceAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/sources", http.StatusFound)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/sources/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.Redirect(w, r, "/sources", http.StatusFound)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Redirect(w, r, "/sources", http.StatusFound)
		return
	}

	switch parts[1] {
	case "toggle":
		s.db.ToggleSource(id)
	case "delete":
		s.db.DeleteSource(id)
	}
	http.Redirect(w, r, "/sources", http.StatusFound)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, _ := s.db.RecentItems(100)
	s.render(w, "items.html", map[string]any{
		"Items": items,
	})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, _ := s.db.AllPlayers()
	s.render(w, "players.html", map[string]any{
		"Players": players,
	})
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/players", http.StatusFound)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name != "" {
		var position, school, notes *string
		if v := strings.TrimSpace(r.FormValue("position")); v != "" {
			position = &v
		}
		if v := strings.TrimSpace(r.FormValue("school")); v != "" {
			school = &v
		}
		if v := strings.TrimSpace(r.FormValue("notes")); v != "" {
			notes = &v
		}
		if _, err := s.db.InsertPlayer(name, position, school, notes); err != nil {
			log.Printf("adding player: %v", err)
		}
	}
	http.Redirect(w, r, "/players", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

// flashFromQuery turns the ingest redirect's query parameters into a
// display message.
func flashFromQuery(r *http.Request) string {
	q := r.URL.Query()
	if msg := q.Get("cycle_error"); msg != "" {
		return "Ingestion failed: " + msg
	}
	if q.Get("added") == "" {
		return ""
	}
	msg := fmt.Sprintf("Ingestion complete: %s added, %s skipped, %s filtered, %s mentions",
		q.Get("added"), q.Get("skipped"), q.Get("filtered"), q.Get("mentions"))
	if n, _ := strconv.Atoi(q.Get("errors")); n > 0 {
		msg += fmt.Sprintf(" (%d source errors, see logs)", n)
	}
	return msg
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func formatDuration(seconds *int) string {
	if seconds == nil {
		return ""
	}
	d := *seconds
	if d >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", d/3600, (d%3600)/60, d%60)
	}
	return fmt.Sprintf("%d:%02d", d/60, d%60)
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, runner CycleRunner, port int) error {
	srv, err := New(db, runner)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
