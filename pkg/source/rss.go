package source

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Feed is a named feed URL with its category and optional keyword filter.
type Feed struct {
	Name     string
	URL      string
	Category string
	Filter   *Filter
}

// RSS collects articles from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	feeds  []Feed
	opts   Options
	now    func() time.Time
}

// NewRSS creates a new RSS collector.
func NewRSS(feeds []Feed, opts Options) *RSS {
	opts = opts.withDefaults()
	return &RSS{
		client: &http.Client{Timeout: opts.Timeout},
		feeds:  feeds,
		opts:   opts,
		now:    time.Now,
	}
}

func (r *RSS) Name() SourceType { return SourceRSS }

func (r *RSS) Collect(ctx context.Context) ([]Article, error) {
	return collectFeeds(ctx, r.feeds, r.opts.Workers, r.opts.Logger, r.collectFeed), nil
}

func (r *RSS) collectFeed(ctx context.Context, feed Feed) ([]Article, error) {
	parsed, err := fetchFeed(ctx, r.client, r.opts.UserAgent, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("rss %s: %w", feed.Name, err)
	}

	cutoff := r.now().Add(-r.opts.MaxAge)
	var articles []Article

	for _, entry := range parsed.Items {
		published := entryPublished(entry)
		if published.IsZero() || published.Before(cutoff) {
			continue
		}

		title := CleanHTML(entry.Title)
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if title == "" || link == "" {
			continue
		}

		summary := Truncate(entrySummary(entry), MaxSummaryLength)
		if !feed.Filter.Match(title + " " + summary) {
			continue
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		articles = append(articles, Article{
			Hash:      HashURL(link),
			Title:     title,
			Link:      link,
			Summary:   summary,
			Source:    feed.Name,
			Category:  feed.Category,
			Type:      SourceRSS,
			Author:    author,
			Published: published,
		})
	}

	return articles, nil
}
