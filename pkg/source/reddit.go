package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	redditSummaryLength = 400
	redditMaxAge        = 3 * 24 * time.Hour
)

// Reddit collects subreddit posts. Without API credentials it reads the public
// RSS feeds configured for each subreddit; with credentials it uses the OAuth
// listing API, which also carries upvote and comment counts.
type Reddit struct {
	client       *http.Client
	feeds        []Feed
	opts         Options
	clientID     string
	clientSecret string
	authURL      string
	apiURL       string
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewReddit creates a new Reddit collector.
func NewReddit(feeds []Feed, clientID, clientSecret string, opts Options) *Reddit {
	opts = opts.withDefaults()
	if opts.MaxAge > redditMaxAge {
		opts.MaxAge = redditMaxAge
	}
	return &Reddit{
		client:       &http.Client{Timeout: opts.Timeout},
		feeds:        feeds,
		opts:         opts,
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      "https://www.reddit.com/api/v1/access_token",
		apiURL:       "https://oauth.reddit.com",
		now:          time.Now,
	}
}

func (r *Reddit) Name() SourceType { return SourceReddit }

func (r *Reddit) Collect(ctx context.Context) ([]Article, error) {
	if r.clientID == "" || r.clientSecret == "" {
		return collectFeeds(ctx, r.feeds, r.opts.Workers, r.opts.Logger, r.collectRSS), nil
	}

	if err := r.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}
	return collectFeeds(ctx, r.feeds, r.opts.Workers, r.opts.Logger, r.collectListing), nil
}

func (r *Reddit) collectRSS(ctx context.Context, feed Feed) ([]Article, error) {
	parsed, err := fetchFeed(ctx, r.client, r.opts.UserAgent, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("reddit %s: %w", feed.Name, err)
	}

	cutoff := r.now().Add(-r.opts.MaxAge)
	var articles []Article

	for _, entry := range parsed.Items {
		published := entryPublished(entry)
		if published.IsZero() || published.Before(cutoff) {
			continue
		}

		title := CleanHTML(entry.Title)
		if title == "" || entry.Link == "" {
			continue
		}

		summary := Truncate(entrySummary(entry), redditSummaryLength)
		if !feed.Filter.Match(title + " " + summary) {
			continue
		}

		author := ""
		if entry.Author != nil {
			author = strings.TrimPrefix(entry.Author.Name, "/u/")
		}

		articles = append(articles, Article{
			Hash:      HashURL(entry.Link),
			Title:     title,
			Link:      entry.Link,
			Summary:   summary,
			Source:    feed.Name,
			Category:  feed.Category,
			Type:      SourceReddit,
			Author:    author,
			Published: published,
		})
	}

	return articles, nil
}

func (r *Reddit) authenticate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && r.now().Before(r.tokenExpiry) {
		return nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reddit auth status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode reddit token: %w", err)
	}

	r.token = tokenResp.AccessToken
	r.tokenExpiry = r.now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (r *Reddit) collectListing(ctx context.Context, feed Feed) ([]Article, error) {
	sub := subredditFromURL(feed.URL)
	if sub == "" {
		return nil, fmt.Errorf("reddit %s: no subreddit in %q", feed.Name, feed.URL)
	}

	reqURL := fmt.Sprintf("%s/r/%s/hot.json?limit=50", r.apiURL, sub)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	token := r.token
	r.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", sub, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit r/%s status %d", sub, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode r/%s: %w", sub, err)
	}

	cutoff := r.now().Add(-r.opts.MaxAge)
	var articles []Article

	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}

		published := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if published.Before(cutoff) {
			continue
		}

		title := CleanHTML(post.Title)
		summary := Truncate(CleanHTML(post.Selftext), redditSummaryLength)
		if title == "" || !feed.Filter.Match(title+" "+summary) {
			continue
		}

		link := "https://www.reddit.com" + post.Permalink

		articles = append(articles, Article{
			Hash:      HashURL(link),
			Title:     title,
			Link:      link,
			Summary:   summary,
			Source:    feed.Name,
			Category:  feed.Category,
			Type:      SourceReddit,
			Author:    post.Author,
			Published: published,
			Engagement: map[string]int{
				"upvotes": post.Score,
				"replies": post.NumComments,
			},
		})
	}

	return articles, nil
}

// subredditFromURL extracts "golang" from URLs like https://www.reddit.com/r/golang/.rss.
func subredditFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "r" {
			return strings.TrimSuffix(parts[i+1], ".rss")
		}
	}
	return ""
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}
