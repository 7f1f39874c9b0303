package source

import (
	"context"
	"time"
)

// SourceType identifies which kind of collector an article came from.
type SourceType string

const (
	SourceRSS        SourceType = "rss"
	SourceReddit     SourceType = "reddit"
	SourceHackerNews SourceType = "hackernews"
	SourceTwitter    SourceType = "twitter"
)

// Article is the normalized record every collector produces and every later
// stage (dedup, trend scoring, rendering) consumes.
type Article struct {
	Hash      string     `json:"hash" db:"hash"`
	Title     string     `json:"title" db:"title"`
	Link      string     `json:"link" db:"link"`
	Summary   string     `json:"summary" db:"summary"`
	Source    string     `json:"source" db:"source"`
	Category  string     `json:"category" db:"category"`
	Type      SourceType `json:"type" db:"type"`
	Author    string     `json:"author,omitempty" db:"author"`
	Published time.Time  `json:"published" db:"published"`

	// Engagement holds named count metrics (likes, retweets, replies, upvotes).
	// A nil map means the source has no engagement signal.
	Engagement map[string]int `json:"engagement,omitempty" db:"-"`

	TrendScore float64 `json:"trend_score" db:"trend_score"`
	IsTrending bool    `json:"is_trending" db:"is_trending"`

	EngagementJSON string `json:"-" db:"engagement"`
}

// Source is the interface every collector must implement.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context) ([]Article, error)
}

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceRSS,
		SourceReddit,
		SourceHackerNews,
		SourceTwitter,
	}
}
