package summary

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/trend"
)

func topicsWith(dirs ...trend.Direction) []trend.Topic {
	topics := make([]trend.Topic, len(dirs))
	for i, d := range dirs {
		topics[i] = trend.Topic{Term: string(rune('A' + i)), Direction: d}
	}
	return topics
}

func TestCalculateMomentum(t *testing.T) {
	t.Parallel()

	const (
		n = trend.DirectionNew
		u = trend.DirectionUp
		s = trend.DirectionStable
		d = trend.DirectionDown
	)

	tests := []struct {
		name   string
		topics []trend.Topic
		want   Momentum
	}{
		{"empty", nil, MomentumQuiet},
		{"mostly rising", topicsWith(n, u, n, s), MomentumAccelerating},
		{"mixed", topicsWith(n, u, s, s, d), MomentumActive},
		{"stable", topicsWith(s, s, s, d), MomentumSteady},
		{"falling", topicsWith(d, d, s, n), MomentumQuiet},
		{"exactly 0.6 is not accelerating", topicsWith(n, n, n, s, s), MomentumActive},
		{"only first ten count", topicsWith(s, s, s, s, s, s, s, s, s, s, n, n, n, n, n), MomentumSteady},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateMomentum(tt.topics); got != tt.want {
				t.Errorf("CalculateMomentum() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	articles := []source.Article{
		{Source: "Ars", Category: "tech", IsTrending: true},
		{Source: "HN", Category: "tech"},
		{Source: "HN", Category: "tech"},
		{Source: "r/go", Category: "social-buzz", IsTrending: true},
	}
	categories := []Category{
		{ID: "news", Label: "News", Color: "#059669"},
		{ID: "social-buzz", Label: "Social", Color: "#db2777"},
		{ID: "tech", Label: "Tech", Color: "#2563eb"},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := Generate(articles, topicsWith(trend.DirectionNew), categories, now, logger)

	if s.TotalArticles != 4 || s.ActiveSources != 3 || s.TrendingCount != 2 {
		t.Errorf("totals = %d/%d/%d, want 4/3/2", s.TotalArticles, s.ActiveSources, s.TrendingCount)
	}
	if s.Momentum != MomentumAccelerating {
		t.Errorf("momentum = %q", s.Momentum)
	}
	if !s.BuildTime.Equal(now) {
		t.Errorf("build time = %v", s.BuildTime)
	}

	wantCats := []CategoryStat{
		{ID: "tech", Label: "Tech", Color: "#2563eb", Count: 3, Pct: 100},
		{ID: "social-buzz", Label: "Social", Color: "#db2777", Count: 1, Pct: 33},
		{ID: "news", Label: "News", Color: "#059669", Count: 0, Pct: 0},
	}
	if len(s.Categories) != len(wantCats) {
		t.Fatalf("categories = %+v", s.Categories)
	}
	for i, want := range wantCats {
		if s.Categories[i] != want {
			t.Errorf("category[%d] = %+v, want %+v", i, s.Categories[i], want)
		}
	}

	wantSources := []SourceStat{{"HN", 2}, {"Ars", 1}, {"r/go", 1}}
	for i, want := range wantSources {
		if s.TopSources[i] != want {
			t.Errorf("source[%d] = %+v, want %+v", i, s.TopSources[i], want)
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	t.Parallel()

	s := Generate(nil, nil, []Category{{ID: "tech"}}, time.Now(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s.TotalArticles != 0 || s.Momentum != MomentumQuiet || len(s.TopSources) != 0 {
		t.Errorf("summary = %+v", s)
	}
	if s.Categories[0].Pct != 0 {
		t.Errorf("pct = %d", s.Categories[0].Pct)
	}
}
