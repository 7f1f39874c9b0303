package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	twitterTitleLength = 120
	defaultMaxTweets   = 30
)

// TwitterSearch is one X/Twitter search query to follow.
type TwitterSearch struct {
	Query      string
	Category   string
	MaxResults int
}

// Twitter collects search results from X via a Nitter instance's RSS bridge,
// so no API access or browser is needed.
type Twitter struct {
	client    *http.Client
	nitterURL string
	searches  []TwitterSearch
	opts      Options
	now       func() time.Time
}

// NewTwitter creates a new Twitter/X search collector.
func NewTwitter(nitterURL string, searches []TwitterSearch, opts Options) *Twitter {
	opts = opts.withDefaults()
	if nitterURL == "" {
		nitterURL = "https://nitter.net"
	}
	return &Twitter{
		client:    &http.Client{Timeout: opts.Timeout},
		nitterURL: strings.TrimRight(nitterURL, "/"),
		searches:  searches,
		opts:      opts,
		now:       time.Now,
	}
}

func (t *Twitter) Name() SourceType { return SourceTwitter }

func (t *Twitter) Collect(ctx context.Context) ([]Article, error) {
	feeds := make([]Feed, len(t.searches))
	for i, s := range t.searches {
		feeds[i] = Feed{Name: s.Query, URL: t.searchURL(s.Query), Category: s.Category}
	}

	// Searches run one at a time; Nitter instances rate-limit aggressively.
	return collectFeeds(ctx, feeds, 1, t.opts.Logger, func(ctx context.Context, feed Feed) ([]Article, error) {
		limit := defaultMaxTweets
		for _, s := range t.searches {
			if s.Query == feed.Name && s.MaxResults > 0 {
				limit = s.MaxResults
			}
		}
		return t.collectSearch(ctx, feed, limit)
	}), nil
}

func (t *Twitter) searchURL(query string) string {
	return fmt.Sprintf("%s/search/rss?f=tweets&q=%s", t.nitterURL, url.QueryEscape(query))
}

func (t *Twitter) collectSearch(ctx context.Context, feed Feed, limit int) ([]Article, error) {
	parsed, err := fetchFeed(ctx, t.client, t.opts.UserAgent, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("twitter search %q: %w", feed.Name, err)
	}

	cutoff := t.now().Add(-t.opts.MaxAge)
	seen := make(map[string]bool)
	var articles []Article

	for _, entry := range parsed.Items {
		if len(articles) >= limit {
			break
		}

		text := CleanHTML(entry.Description)
		if text == "" {
			text = CleanHTML(entry.Title)
		}
		if text == "" {
			continue
		}

		published := entryPublished(entry)
		if published.IsZero() {
			published = t.now().UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		// Point links back at x.com rather than the bridge.
		link := strings.Replace(entry.Link, t.nitterURL, "https://x.com", 1)
		link = strings.TrimSuffix(link, "#m")
		if link == "" {
			link = "https://x.com/search?q=" + url.QueryEscape(Truncate(text, 50))
		}

		hash := HashURL(link)
		if seen[hash] {
			continue
		}
		seen[hash] = true

		author := strings.TrimPrefix(tweetAuthor(entry), "@")
		name := "Twitter"
		if author != "" {
			name = "Twitter @" + author
		}

		articles = append(articles, Article{
			Hash:      hash,
			Title:     Truncate(text, twitterTitleLength),
			Link:      link,
			Summary:   Truncate(text, MaxSummaryLength),
			Source:    name,
			Category:  feed.Category,
			Type:      SourceTwitter,
			Author:    author,
			Published: published,
		})
	}

	return articles, nil
}

// tweetAuthor reads the handle from the item author, falling back to
// dc:creator since gofeed drops names that look like "@handle".
func tweetAuthor(entry *gofeed.Item) string {
	if entry.Author != nil && entry.Author.Name != "" {
		return entry.Author.Name
	}
	if entry.DublinCoreExt != nil && len(entry.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(entry.DublinCoreExt.Creator[0])
	}
	return ""
}
