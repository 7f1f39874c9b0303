package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HackerNews collects top stories from the Hacker News forum. Points and
// comment counts become the article's engagement.
type HackerNews struct {
	client   *http.Client
	baseURL  string
	limit    int
	category string
	filter   *Filter
	opts     Options
	now      func() time.Time
}

// NewHackerNews creates a new HN collector.
func NewHackerNews(limit int, category string, filter *Filter, opts Options) *HackerNews {
	opts = opts.withDefaults()
	if limit <= 0 {
		limit = 100
	}
	return &HackerNews{
		client:   &http.Client{Timeout: opts.Timeout},
		baseURL:  "https://hacker-news.firebaseio.com/v0",
		limit:    limit,
		category: category,
		filter:   filter,
		opts:     opts,
		now:      time.Now,
	}
}

func (h *HackerNews) Name() SourceType { return SourceHackerNews }

func (h *HackerNews) Collect(ctx context.Context) ([]Article, error) {
	ids, err := h.fetchTopStories(ctx)
	if err != nil {
		return nil, err
	}

	if len(ids) > h.limit {
		ids = ids[:h.limit]
	}

	var (
		mu      sync.Mutex
		stories = make(map[int]*hnStory, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			story, err := h.fetchItem(gctx, id)
			if err != nil || story == nil {
				return nil
			}
			mu.Lock()
			stories[id] = story
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	cutoff := h.now().Add(-h.opts.MaxAge)
	var articles []Article

	// Walk ids rather than the map so output follows the ranking.
	for _, id := range ids {
		story, ok := stories[id]
		if !ok {
			continue
		}

		published := time.Unix(story.Time, 0).UTC()
		if published.Before(cutoff) {
			continue
		}

		title := CleanHTML(story.Title)
		summary := Truncate(CleanHTML(story.Text), MaxSummaryLength)
		if title == "" || !h.filter.Match(title+" "+summary+" "+story.URL) {
			continue
		}

		link := story.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + strconv.Itoa(story.ID)
		}

		articles = append(articles, Article{
			Hash:      HashURL(link),
			Title:     title,
			Link:      link,
			Summary:   summary,
			Source:    "Hacker News",
			Category:  h.category,
			Type:      SourceHackerNews,
			Author:    story.By,
			Published: published,
			Engagement: map[string]int{
				"upvotes": story.Score,
				"replies": story.Descendants,
			},
		})
	}

	return articles, nil
}

type hnStory struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
	Type        string `json:"type"`
}

func (h *HackerNews) fetchTopStories(ctx context.Context) ([]int, error) {
	var ids []int
	if err := h.getJSON(ctx, h.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetch hn top stories: %w", err)
	}
	return ids, nil
}

func (h *HackerNews) fetchItem(ctx context.Context, id int) (*hnStory, error) {
	var story hnStory
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &story); err != nil {
		return nil, fmt.Errorf("fetch hn item %d: %w", id, err)
	}
	if story.Type != "story" {
		return nil, nil
	}
	return &story, nil
}

func (h *HackerNews) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
