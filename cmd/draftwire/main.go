package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonathanBechtel/draftwire/internal/ai"
	"github.com/JonathanBechtel/draftwire/internal/config"
	"github.com/JonathanBechtel/draftwire/internal/database"
	"github.com/JonathanBechtel/draftwire/internal/enrich"
	"github.com/JonathanBechtel/draftwire/internal/feed"
	"github.com/JonathanBechtel/draftwire/internal/ingest"
	"github.com/JonathanBechtel/draftwire/internal/relevance"
	"github.com/JonathanBechtel/draftwire/internal/resolve"
	"github.com/JonathanBechtel/draftwire/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "draftwire",
	Short:   "NBA draft content tracker",
	Long:    "Draftwire syncs draft news and podcast feeds into a local datastore, classifying items and linking the prospects they mention.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(playersCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("draftwire", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/draftwire/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the AI provider and ingestion settings, then add feeds with 'draftwire sources add'.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Sources:")
		fmt.Printf("  Total: %d\n", stats.TotalSources)
		fmt.Printf("  Active: %d\n", stats.ActiveSources)
		fmt.Println("\nContent:")
		fmt.Printf("  Items: %d\n", stats.TotalItems)
		fmt.Printf("  News: %d\n", stats.NewsItems)
		fmt.Printf("  Episodes: %d\n", stats.Episodes)
		fmt.Println("\nPlayers:")
		fmt.Printf("  Total: %d\n", stats.TotalPlayers)
		fmt.Printf("  Stubs: %d\n", stats.StubPlayers)
		fmt.Printf("  Mentions: %d\n", stats.TotalMentions)
		fmt.Printf("\nIngestion runs: %d\n", stats.Runs)
		return nil
	},
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion cycle over all active sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ing := buildIngestor(db)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		started := time.Now()
		result, err := ing.RunCycle(ctx)
		if err != nil {
			return err
		}
		recordRun(db, started, result)
		printCycle(result)
		return nil
	},
}

// --- watch command ---

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run ingestion cycles continuously",
	Long:  "Polls on a fixed interval; each cycle only touches sources whose own fetch interval has elapsed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ing := buildIngestor(db)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interval := time.Duration(watchInterval) * time.Minute
		fmt.Printf("Watching sources every %s. Press Ctrl+C to stop.\n", interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			started := time.Now()
			result, err := ing.RunCycle(ctx)
			if err != nil {
				log.Printf("cycle failed: %v", err)
			} else {
				recordRun(db, started, result)
				printCycle(result)
			}

			select {
			case <-ctx.Done():
				fmt.Println("\nStopping.")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	watchCmd.Flags().IntVarP(&watchInterval, "interval", "i", 15, "Minutes between cycles")
}

func printCycle(result *ingest.CycleResult) {
	fmt.Println("Cycle complete:")
	fmt.Printf("  Sources processed: %d\n", result.SourcesProcessed)
	fmt.Printf("  Items added: %d\n", result.ItemsAdded)
	fmt.Printf("  Items skipped: %d\n", result.ItemsSkipped)
	fmt.Printf("  Items filtered: %d\n", result.ItemsFiltered)
	fmt.Printf("  Mentions added: %d\n", result.MentionsAdded)
	for _, e := range result.Errors {
		fmt.Printf("  Error: %s\n", e)
	}
}

func recordRun(db *database.DB, started time.Time, result *ingest.CycleResult) {
	_, err := db.InsertRun(database.RunRecord{
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

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local admin server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, buildIngestor(db), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage feed sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sources, err := db.AllSources()
		if err != nil {
			return err
		}

		if len(sources) == 0 {
			fmt.Println("No sources configured. Add one with: draftwire sources add")
			return nil
		}

		fmt.Println("Sources:")
		fmt.Println()
		for _, s := range sources {
			icon := " "
			if s.IsActive {
				icon = "*"
			}
			focused := ""
			if s.DraftFocused {
				focused = " [focused]"
			}
			fmt.Printf("  [%d] %s %s (%s)%s\n", s.ID, icon, s.Name, s.Kind, focused)
			fmt.Printf("        %s\n", s.FeedURL)
			if s.LastFetchedAt != nil {
				fmt.Printf("        last fetched %s\n", s.LastFetchedAt.Format("2006-01-02 15:04"))
			}
		}
		return nil
	},
}

var (
	addKind     string
	addFocused  bool
	addInterval int
)

var sourcesAddCmd = &cobra.Command{
	Use:   "add [name] [feed-url]",
	Short: "Add a feed source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		kind := addKind
		if kind != database.SourceKindPodcast {
			kind = database.SourceKindNews
		}

		id, err := db.InsertSource(args[0], args[1], kind, addFocused, addInterval)
		if err != nil {
			return err
		}
		fmt.Printf("Added source [%d]: %s\n", id, args[0])
		return nil
	},
}

var sourcesToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a source's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source ID: %s", args[0])
		}

		src, err := db.GetSource(id)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("source %d not found", id)
		}

		if err := db.ToggleSource(id); err != nil {
			return err
		}
		newState := "disabled"
		if !src.IsActive {
			newState = "enabled"
		}
		fmt.Printf("Source [%d] %s: %s\n", id, src.Name, newState)
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a source and its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source ID: %s", args[0])
		}

		src, err := db.GetSource(id)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("source %d not found", id)
		}

		if err := db.DeleteSource(id); err != nil {
			return err
		}
		fmt.Printf("Removed source [%d]: %s\n", id, src.Name)
		return nil
	},
}

func init() {
	sourcesAddCmd.Flags().StringVar(&addKind, "kind", "news", "Source kind: news or podcast")
	sourcesAddCmd.Flags().BoolVar(&addFocused, "focused", false, "Source is draft-focused (skip relevance filtering)")
	sourcesAddCmd.Flags().IntVar(&addInterval, "interval", 0, "Minimum minutes between fetches (0 = every cycle)")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesToggleCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
}

// --- players command ---

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Manage tracked players",
}

var playersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all players",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		players, err := db.AllPlayers()
		if err != nil {
			return err
		}

		if len(players) == 0 {
			fmt.Println("No players yet. Stubs are created automatically during ingestion.")
			return nil
		}

		fmt.Println("Players:")
		fmt.Println()
		for _, p := range players {
			stub := ""
			if p.IsStub {
				stub = " (stub)"
			}
			fmt.Printf("  [%d] %s%s\n", p.ID, p.Name, stub)
			var details []string
			if p.Position != nil && *p.Position != "" {
				details = append(details, *p.Position)
			}
			if p.School != nil && *p.School != "" {
				details = append(details, *p.School)
			}
			if len(details) > 0 {
				fmt.Printf("        %s\n", strings.Join(details, ", "))
			}
		}
		return nil
	},
}

func init() {
	playersCmd.AddCommand(playersListCmd)
}

// buildIngestor wires the ingestion engine from config.
func buildIngestor(db *database.DB) *ingest.Ingestor {
	provider := ai.CreateProvider(cfg.AI.Provider, cfg.AI.Model, cfg.AI.OllamaURL, cfg.AI.OpenAIModel, cfg.AI.APIKeyEnv)
	svc := ai.NewClient(provider, cfg.AI.MaxTokens)

	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = relevance.DefaultKeywords
	}
	filter := relevance.NewFilter(keywords, svc)

	connect := time.Duration(cfg.Fetch.ConnectTimeoutSeconds) * time.Second
	read := time.Duration(cfg.Fetch.ReadTimeoutSeconds) * time.Second
	fetcher := feed.NewFetcher(connect, read, cfg.Ingestion.MaxPerFeed)

	var enricher ingest.Enricher
	if cfg.Ingestion.EnrichNews {
		enricher = enrich.New(read)
	}

	return ingest.New(db, fetcher, svc, filter, resolve.New(db), enricher, ingest.Options{
		LookbackDays: cfg.Ingestion.LookbackDays,
		CreateStubs:  cfg.Ingestion.CreateStubs,
		EnrichNews:   cfg.Ingestion.EnrichNews,
	})
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "draftwire.db")
	return database.Open(dbPath)
}
