// Package summary builds the executive summary shown on the site homepage.
package summary

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/trend"
)

const (
	// TopSourceCount is how many sources the summary lists.
	TopSourceCount = 8
	// TopicCount is how many trending topics the summary carries.
	TopicCount = 10
)

// Momentum describes the overall direction of the trending topics.
type Momentum string

const (
	MomentumAccelerating Momentum = "accelerating"
	MomentumActive       Momentum = "active"
	MomentumSteady       Momentum = "steady"
	MomentumQuiet        Momentum = "quiet"
)

// Category is the display metadata of one category.
type Category struct {
	ID    string
	Label string
	Color string
}

// CategoryStat is the article count of one category. Pct is relative to
// the busiest category.
type CategoryStat struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Count int    `json:"count"`
	Pct   int    `json:"pct"`
}

// SourceStat is the article count of one source.
type SourceStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the data behind the homepage summary widget.
type Summary struct {
	Topics        []trend.Topic  `json:"trending_topics"`
	Categories    []CategoryStat `json:"category_stats"`
	TopSources    []SourceStat   `json:"top_sources"`
	TotalArticles int            `json:"total_articles"`
	ActiveSources int            `json:"active_sources"`
	TrendingCount int            `json:"trending_count"`
	Momentum      Momentum       `json:"momentum"`
	BuildTime     time.Time      `json:"build_time"`
}

// Generate summarizes a scored batch.
func Generate(articles []source.Article, topics []trend.Topic, categories []Category, now time.Time, logger *slog.Logger) Summary {
	if logger == nil {
		logger = slog.Default()
	}

	catCounts := make(map[string]int)
	srcCounts := make(map[string]int)
	var srcOrder []string
	trending := 0

	for _, a := range articles {
		catCounts[a.Category]++
		if _, ok := srcCounts[a.Source]; !ok {
			srcOrder = append(srcOrder, a.Source)
		}
		srcCounts[a.Source]++
		if a.IsTrending {
			trending++
		}
	}

	s := Summary{
		Topics:        topics[:min(len(topics), TopicCount)],
		Categories:    categoryStats(categories, catCounts),
		TopSources:    topSources(srcOrder, srcCounts),
		TotalArticles: len(articles),
		ActiveSources: len(srcCounts),
		TrendingCount: trending,
		Momentum:      CalculateMomentum(topics),
		BuildTime:     now.UTC(),
	}

	logger.Info("summary: generated",
		"articles", s.TotalArticles, "sources", s.ActiveSources,
		"trending", s.TrendingCount, "momentum", s.Momentum)
	return s
}

func categoryStats(categories []Category, counts map[string]int) []CategoryStat {
	maxCount := 0
	for _, n := range counts {
		maxCount = max(maxCount, n)
	}

	stats := make([]CategoryStat, 0, len(categories))
	for _, c := range categories {
		n := counts[c.ID]
		pct := 0
		if maxCount > 0 {
			pct = int(math.Round(float64(n) / float64(maxCount) * 100))
		}
		stats = append(stats, CategoryStat{ID: c.ID, Label: c.Label, Color: c.Color, Count: n, Pct: pct})
	}

	slices.SortStableFunc(stats, func(a, b CategoryStat) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return stats
}

func topSources(order []string, counts map[string]int) []SourceStat {
	stats := make([]SourceStat, 0, len(order))
	for _, name := range order {
		stats = append(stats, SourceStat{Name: name, Count: counts[name]})
	}
	slices.SortStableFunc(stats, func(a, b SourceStat) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return stats[:min(len(stats), TopSourceCount)]
}

// CalculateMomentum classifies the first TopicCount topics by direction.
func CalculateMomentum(topics []trend.Topic) Momentum {
	topics = topics[:min(len(topics), TopicCount)]
	if len(topics) == 0 {
		return MomentumQuiet
	}

	up, stable := 0, 0
	for _, t := range topics {
		switch t.Direction {
		case trend.DirectionUp, trend.DirectionNew:
			up++
		case trend.DirectionStable:
			stable++
		}
	}

	total := float64(len(topics))
	ratio := float64(up) / total

	switch {
	case ratio > 0.6:
		return MomentumAccelerating
	case ratio > 0.3:
		return MomentumActive
	case float64(stable) > total*0.5:
		return MomentumSteady
	default:
		return MomentumQuiet
	}
}
