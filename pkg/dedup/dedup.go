package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elonfeng/signalfeed/pkg/source"
)

const (
	// SimilarityThreshold is the title ratio at or above which two articles
	// in one batch are duplicates.
	SimilarityThreshold = 0.85
	// MaxSeenEntries bounds the persisted seen-hash set.
	MaxSeenEntries = 10000
)

// SeenStore persists article hashes across builds.
type SeenStore interface {
	SeenHashes(ctx context.Context) (map[string]bool, error)
	MarkSeen(ctx context.Context, hashes []string, keep int) error
}

// Deduplicator drops articles already published in earlier builds and
// near-identical titles within the current batch.
type Deduplicator struct {
	store  SeenStore
	seen   map[string]bool
	added  []string
	logger *slog.Logger
}

// New loads the seen set from store. A nil store keeps the set in memory only.
func New(ctx context.Context, store SeenStore, logger *slog.Logger) (*Deduplicator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Deduplicator{store: store, seen: make(map[string]bool), logger: logger}

	if store != nil {
		seen, err := store.SeenHashes(ctx)
		if err != nil {
			return nil, fmt.Errorf("load seen hashes: %w", err)
		}
		d.seen = seen
	}
	return d, nil
}

// Deduplicate returns the articles that survive both checks, in input order.
func (d *Deduplicator) Deduplicate(articles []source.Article) []source.Article {
	var (
		unique  []source.Article
		thisRun = make(map[string]bool)
		titles  []string
	)

	for _, a := range articles {
		if d.seen[a.Hash] || thisRun[a.Hash] {
			continue
		}
		if d.similarTitle(a.Title, titles) {
			continue
		}

		unique = append(unique, a)
		thisRun[a.Hash] = true
		titles = append(titles, a.Title)
	}

	for _, a := range unique {
		d.seen[a.Hash] = true
		d.added = append(d.added, a.Hash)
	}

	d.logger.Info("dedup: batch filtered",
		"in", len(articles), "out", len(unique), "removed", len(articles)-len(unique))
	return unique
}

func (d *Deduplicator) similarTitle(title string, titles []string) bool {
	if title == "" {
		return false
	}
	for _, existing := range titles {
		if existing != "" && TitleSimilarity(title, existing) >= SimilarityThreshold {
			return true
		}
	}
	return false
}

// Save persists hashes accepted since New, trimming the store to MaxSeenEntries.
func (d *Deduplicator) Save(ctx context.Context) error {
	if d.store == nil || len(d.added) == 0 {
		return nil
	}
	if err := d.store.MarkSeen(ctx, d.added, MaxSeenEntries); err != nil {
		return fmt.Errorf("save seen hashes: %w", err)
	}
	d.logger.Info("dedup: saved seen hashes", "added", len(d.added))
	d.added = nil
	return nil
}
