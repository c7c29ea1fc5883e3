package database

import "time"

// Source kinds.
const (
	SourceKindNews    = "news"
	SourceKindPodcast = "podcast"
)

// Mention origins.
const (
	MentionOriginAI       = "ai"
	MentionOriginManual   = "manual"
	MentionOriginBackfill = "backfill"
)

// Source is a configured external feed the ingestor polls.
// Instances are plain value snapshots; nothing here stays bound to the store.
type Source struct {
	ID                   int64
	Name                 string
	FeedURL              string
	Kind                 string // "news" or "podcast"
	IsActive             bool
	DraftFocused         bool
	FetchIntervalMinutes int
	LastFetchedAt        *time.Time
	CreatedAt            *string
}

// ContentItem is one ingested unit of content (news item or podcast episode).
type ContentItem struct {
	ID              int64
	SourceID        int64
	ExternalID      string
	Kind            string
	Title           string
	Summary         string
	Tag             string
	MediaURL        string
	ArtworkURL      *string
	DurationSeconds *int
	Season          *int
	EpisodeNumber   *int
	PlayerID        *int64
	PublishedAt     time.Time
	CreatedAt       *string
}

// Player is a canonical draft prospect record. Stub players are created
// by the mention resolver when an AI-extracted name has no match.
type Player struct {
	ID             int64
	Name           string
	NormalizedName string
	Position       *string
	School         *string
	IsStub         bool
	Notes          *string
	CreatedAt      *string
}

// Mention links a content item to a player it references.
type Mention struct {
	ID          int64
	ItemID      int64
	PlayerID    int64
	Origin      string
	PublishedAt time.Time
	CreatedAt   *string
}

// RunRecord holds the persisted summary of one ingestion cycle.
type RunRecord struct {
	ID               int64
	StartedAt        string
	FinishedAt       string
	SourcesProcessed int
	ItemsAdded       int
	ItemsSkipped     int
	ItemsFiltered    int
	MentionsAdded    int
	Errors           []string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalSources  int
	ActiveSources int
	TotalItems    int
	NewsItems     int
	Episodes      int
	TotalPlayers  int
	StubPlayers   int
	TotalMentions int
	Runs          int
}
