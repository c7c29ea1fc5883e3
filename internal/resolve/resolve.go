// Package resolve maps free-text player names to canonical player IDs.
package resolve

import (
	"fmt"
	"log"

	"github.com/JonathanBechtel/draftwire/internal/database"
)

// Resolver resolves batches of AI-extracted names against the player
// table and its aliases.
type Resolver struct {
	db *database.DB
}

// New creates a Resolver.
func New(db *database.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve maps names to player IDs keyed by normalized name. Matching
// is case-insensitive trimmed exact match against canonical names and
// aliases, done in bulk. Unmatched names get a stub player when
// createStubs is set; otherwise they are omitted from the result.
func (r *Resolver) Resolve(names []string, createStubs bool) (map[string]int64, error) {
	// Dedupe while remembering a display form for stub creation.
	display := make(map[string]string, len(names))
	var normalized []string
	for _, name := range names {
		norm := database.NormalizeName(name)
		if norm == "" {
			continue
		}
		if _, ok := display[norm]; !ok {
			display[norm] = name
			normalized = append(normalized, norm)
		}
	}
	if len(normalized) == 0 {
		return map[string]int64{}, nil
	}

	resolved, err := r.db.FindPlayerIDs(normalized)
	if err != nil {
		return nil, fmt.Errorf("looking up players: %w", err)
	}

	if createStubs {
		for _, norm := range normalized {
			if _, ok := resolved[norm]; ok {
				continue
			}
			id, err := r.db.CreateStubPlayer(display[norm])
			if err != nil {
				return nil, fmt.Errorf("creating stub for %q: %w", display[norm], err)
			}
			log.Printf("created stub player %q (id %d)", display[norm], id)
			resolved[norm] = id
		}
	}
	return resolved, nil
}
