package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// Options configures HTTP behaviour shared by all collectors.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Workers   int
	MaxAge    time.Duration
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "signalfeed/1.0"
	}
	if o.Workers <= 0 {
		o.Workers = 10
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 7 * 24 * time.Hour
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// FetchAll runs every source concurrently, at most workers at a time, and
// returns the combined articles in source order. A failing source is logged
// and skipped.
func FetchAll(ctx context.Context, sources []Source, workers int, logger *slog.Logger) []Article {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}

	results := make([][]Article, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			start := time.Now()
			articles, err := src.Collect(gctx)
			if err != nil {
				logger.Warn("source failed", "source", src.Name(), "error", err)
				return nil
			}
			results[i] = articles
			logger.Info("source collected", "source", src.Name(),
				"articles", len(articles), "took", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	_ = g.Wait()

	var all []Article
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// fetchFeed downloads and parses a single RSS/Atom document.
func fetchFeed(ctx context.Context, client *http.Client, userAgent, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

// entryPublished returns the entry's publication time, falling back to its
// update time. The zero time means the entry carries no usable date.
func entryPublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	return publishedOrNil(entry.UpdatedParsed)
}

// entrySummary picks the first non-empty body field of an entry, cleaned.
func entrySummary(entry *gofeed.Item) string {
	if s := CleanHTML(entry.Description); s != "" {
		return s
	}
	return CleanHTML(entry.Content)
}

// collectFeeds fetches feeds concurrently and keeps their configured order.
func collectFeeds(ctx context.Context, feeds []Feed, workers int, logger *slog.Logger,
	fetch func(context.Context, Feed) ([]Article, error)) []Article {

	results := make([][]Article, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, feed := range feeds {
		i, feed := i, feed
		g.Go(func() error {
			articles, err := fetch(gctx, feed)
			if err != nil {
				logger.Warn("feed failed", "feed", feed.Name, "url", feed.URL, "error", err)
				return nil
			}
			logger.Debug("feed collected", "feed", feed.Name, "articles", len(articles))
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var all []Article
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}
