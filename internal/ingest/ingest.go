// Package ingest drives the feed-to-datastore synchronization cycle:
// fetch, dedup, filter, classify, persist, and link player mentions.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JonathanBechtel/draftwire/internal/ai"
	"github.com/JonathanBechtel/draftwire/internal/database"
	"github.com/JonathanBechtel/draftwire/internal/feed"
	"github.com/JonathanBechtel/draftwire/internal/relevance"
)

// Store is the persistence surface the orchestrator needs.
// *database.DB satisfies it.
type Store interface {
	ActiveSources() ([]database.Source, error)
	ExistingExternalIDs(sourceID int64, externalIDs []string) (map[string]bool, error)
	PersistBatch(sourceID int64, items []database.ContentItem, fetchedAt time.Time) (map[string]int64, error)
	InsertMentions(mentions []database.Mention) (int, error)
}

// Fetcher retrieves normalized entries for a feed URL.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]feed.Entry, error)
}

// Resolver maps player names to IDs, optionally creating stubs.
type Resolver interface {
	Resolve(names []string, createStubs bool) (map[string]int64, error)
}

// Enricher fetches readable article text for a linked page.
type Enricher interface {
	ArticleText(ctx context.Context, pageURL string) string
}

// CycleResult aggregates one ingestion cycle across all sources. It is
// ephemeral: returned to the caller, never stored by this package.
type CycleResult struct {
	SourcesProcessed int
	ItemsAdded       int
	ItemsSkipped     int
	ItemsFiltered    int
	MentionsAdded    int
	Errors           []string
}

// Options are the ingestion tunables.
type Options struct {
	// LookbackDays is the overlap buffer behind the source cursor,
	// tolerating feeds with inconsistent ordering or clock skew.
	LookbackDays int
	// CreateStubs permits the resolver to create stub players for
	// unmatched names.
	CreateStubs bool
	// EnrichNews fetches linked pages for news entries with thin
	// descriptions before classification.
	EnrichNews bool
}

// minDescriptionForClassify is the description length below which a
// news entry is worth enriching from its linked page.
const minDescriptionForClassify = 200

// Ingestor runs ingestion cycles. Sources are processed one at a time;
// the AI dependency is rate-limited, so serial execution is deliberate.
type Ingestor struct {
	db       Store
	fetcher  Fetcher
	svc      ai.Service
	filter   *relevance.Filter
	resolver Resolver
	enricher Enricher
	opts     Options
}

// New creates an Ingestor. enricher may be nil to disable enrichment.
func New(db Store, fetcher Fetcher, svc ai.Service, filter *relevance.Filter, resolver Resolver, enricher Enricher, opts Options) *Ingestor {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 1
	}
	return &Ingestor{
		db:       db,
		fetcher:  fetcher,
		svc:      svc,
		filter:   filter,
		resolver: resolver,
		enricher: enricher,
		opts:     opts,
	}
}

// RunCycle executes one full ingestion cycle over all active, due
// sources. The returned error is non-nil only when sources cannot be
// enumerated at all; every per-source failure is recorded in
// result.Errors and the cycle continues.
func (ing *Ingestor) RunCycle(ctx context.Context) (*CycleResult, error) {
	sources, err := ing.db.ActiveSources()
	if err != nil {
		return nil, fmt.Errorf("listing active sources: %w", err)
	}

	result := &CycleResult{}
	now := time.Now()
	for _, src := range sources {
		if !sourceDue(src, now) {
			continue
		}
		result.SourcesProcessed++

		counts, err := ing.processSource(ctx, src)
		result.ItemsAdded += counts.added
		result.ItemsSkipped += counts.skipped
		result.ItemsFiltered += counts.filtered
		result.MentionsAdded += counts.mentions
		if err != nil {
			log.Printf("source %q failed: %v", src.Name, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", src.Name, err))
			continue
		}
		log.Printf("source %q: %d added, %d skipped, %d filtered, %d mentions",
			src.Name, counts.added, counts.skipped, counts.filtered, counts.mentions)
	}
	return result, nil
}

// sourceDue reports whether the source's fetch interval has elapsed.
// A zero interval or a never-fetched source is always due.
func sourceDue(src database.Source, now time.Time) bool {
	if src.FetchIntervalMinutes <= 0 || src.LastFetchedAt == nil {
		return true
	}
	next := src.LastFetchedAt.Add(time.Duration(src.FetchIntervalMinutes) * time.Minute)
	return !now.Before(next)
}

type sourceCounts struct {
	added    int
	skipped  int
	filtered int
	mentions int
}

// processSource runs the three-phase ingestion for one source:
// a network/AI phase with no open transaction, a persist transaction
// (items + cursor advance), and a separate best-effort mention
// transaction.
func (ing *Ingestor) processSource(ctx context.Context, src database.Source) (sourceCounts, error) {
	var c sourceCounts

	entries, err := ing.fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		return c, fmt.Errorf("fetching feed: %w", err)
	}

	entries = ing.applyCursor(src, entries)

	// In-batch dedup by external ID, first occurrence wins.
	seen := make(map[string]bool, len(entries))
	var batch []feed.Entry
	for _, e := range entries {
		if seen[e.ExternalID] {
			c.skipped++
			continue
		}
		seen[e.ExternalID] = true
		batch = append(batch, e)
	}

	ids := make([]string, len(batch))
	for i, e := range batch {
		ids[i] = e.ExternalID
	}
	existing, err := ing.db.ExistingExternalIDs(src.ID, ids)
	if err != nil {
		return c, fmt.Errorf("checking existing items: %w", err)
	}

	// Network/AI phase, serial, no transaction open.
	var rows []database.ContentItem
	mentionNames := make(map[string][]string)
	for _, e := range batch {
		if existing[e.ExternalID] {
			c.skipped++
			continue
		}

		if !src.DraftFocused && !ing.filter.IsRelevant(ctx, e.Title, e.Description) {
			c.filtered++
			continue
		}

		mediaURL := e.Link
		if src.Kind == database.SourceKindPodcast {
			if e.AudioURL == "" {
				// An episode without audio is unusable.
				c.skipped++
				continue
			}
			mediaURL = e.AudioURL
		}

		analysis := ing.svc.Analyze(ctx, e.Title, ing.classifyText(ctx, src, e))

		item := database.ContentItem{
			SourceID:        src.ID,
			ExternalID:      e.ExternalID,
			Kind:            src.Kind,
			Title:           e.Title,
			Summary:         analysis.Summary,
			Tag:             analysis.Tag,
			MediaURL:        mediaURL,
			DurationSeconds: e.DurationSeconds,
			Season:          e.Season,
			EpisodeNumber:   e.EpisodeNumber,
			PublishedAt:     e.PublishedAt,
		}
		if e.ArtworkURL != "" {
			artwork := e.ArtworkURL
			item.ArtworkURL = &artwork
		}
		rows = append(rows, item)
		if len(analysis.MentionedPlayers) > 0 {
			mentionNames[e.ExternalID] = analysis.MentionedPlayers
		}
	}

	// Persist phase: one transaction for the bulk insert plus cursor
	// advance. The cursor moves even when nothing new was found so the
	// source has an honest last-checked time.
	inserted, err := ing.persistWithRetry(src, rows)
	if err != nil {
		return c, fmt.Errorf("persisting items: %w", err)
	}
	c.added = len(inserted)
	c.skipped += len(rows) - len(inserted)

	// Mention phase: isolated failure domain. Items stay committed
	// even when mention linking fails.
	added, err := ing.persistMentions(rows, inserted, mentionNames)
	if err != nil {
		log.Printf("mention phase failed for %q (items kept): %v", src.Name, err)
	} else {
		c.mentions = added
	}
	return c, nil
}

// applyCursor drops entries published before the source cursor minus
// the lookback buffer.
func (ing *Ingestor) applyCursor(src database.Source, entries []feed.Entry) []feed.Entry {
	if src.LastFetchedAt == nil {
		return entries
	}
	cutoff := src.LastFetchedAt.AddDate(0, 0, -ing.opts.LookbackDays)
	var kept []feed.Entry
	for _, e := range entries {
		if !e.PublishedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

// classifyText picks the text handed to the classifier, enriching thin
// news descriptions from the linked page when enabled.
func (ing *Ingestor) classifyText(ctx context.Context, src database.Source, e feed.Entry) string {
	desc := e.Description
	if ing.opts.EnrichNews && ing.enricher != nil &&
		src.Kind == database.SourceKindNews &&
		len(desc) < minDescriptionForClassify && e.Link != "" {
		if text := ing.enricher.ArticleText(ctx, e.Link); text != "" {
			return text
		}
	}
	return desc
}

// persistWithRetry runs the persist transaction, retrying exactly once
// when the failure matches a recognized transient marker.
func (ing *Ingestor) persistWithRetry(src database.Source, rows []database.ContentItem) (map[string]int64, error) {
	inserted, err := ing.db.PersistBatch(src.ID, rows, time.Now())
	if err != nil && database.IsTransient(err) {
		log.Printf("transient store failure for %q, retrying once: %v", src.Name, err)
		inserted, err = ing.db.PersistBatch(src.ID, rows, time.Now())
	}
	return inserted, err
}

// persistMentions resolves the accumulated names in one bulk call and
// inserts mention rows for the items that were actually inserted.
func (ing *Ingestor) persistMentions(rows []database.ContentItem, inserted map[string]int64, mentionNames map[string][]string) (int, error) {
	if len(inserted) == 0 || len(mentionNames) == 0 {
		return 0, nil
	}

	publishedByExternal := make(map[string]time.Time, len(rows))
	for _, it := range rows {
		publishedByExternal[it.ExternalID] = it.PublishedAt
	}

	var allNames []string
	for externalID, names := range mentionNames {
		if _, ok := inserted[externalID]; ok {
			allNames = append(allNames, names...)
		}
	}
	if len(allNames) == 0 {
		return 0, nil
	}

	resolved, err := ing.resolver.Resolve(allNames, ing.opts.CreateStubs)
	if err != nil {
		return 0, fmt.Errorf("resolving mentions: %w", err)
	}

	type mentionKey struct {
		itemID   int64
		playerID int64
	}
	dedup := make(map[mentionKey]bool)
	var mentions []database.Mention
	for externalID, names := range mentionNames {
		itemID, ok := inserted[externalID]
		if !ok {
			continue
		}
		for _, name := range names {
			playerID, ok := resolved[database.NormalizeName(name)]
			if !ok {
				continue
			}
			key := mentionKey{itemID, playerID}
			if dedup[key] {
				continue
			}
			dedup[key] = true
			mentions = append(mentions, database.Mention{
				ItemID:      itemID,
				PlayerID:    playerID,
				Origin:      database.MentionOriginAI,
				PublishedAt: publishedByExternal[externalID],
			})
		}
	}

	added, err := ing.db.InsertMentions(mentions)
	if err != nil {
		return 0, fmt.Errorf("inserting mentions: %w", err)
	}
	return added, nil
}
