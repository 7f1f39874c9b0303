package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/trend"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testArticles() []source.Article {
	return []source.Article{
		{
			Hash: "a1", Title: "Go 1.26 released", Link: "https://go.dev/blog/go1.26",
			Source: "Go Blog", Category: "tech", Type: source.SourceRSS,
			Published: testNow.Add(-time.Hour), TrendScore: 2.5, IsTrending: true,
		},
		{
			Hash: "a2", Title: "Ask HN: favourite editor", Link: "https://news.ycombinator.com/item?id=1",
			Source: "Hacker News", Category: "tech", Type: source.SourceHackerNews,
			Published:  testNow.Add(-2 * time.Hour),
			Engagement: map[string]int{"upvotes": 120, "replies": 40},
			TrendScore: 0.4,
		},
		{
			Hash: "a3", Title: "Old news", Link: "https://example.com/old",
			Source: "r/technology", Category: "social-buzz", Type: source.SourceReddit,
			Published: testNow.Add(-10 * 24 * time.Hour),
		},
	}
}

func TestArticlesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.UpsertArticles(ctx, testArticles(), "build-1"); err != nil {
		t.Fatalf("UpsertArticles: %v", err)
	}

	all, err := s.ListArticles(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d articles, want 3", len(all))
	}
	if all[0].Hash != "a1" || all[2].Hash != "a3" {
		t.Errorf("order = %s, %s, %s; want newest first", all[0].Hash, all[1].Hash, all[2].Hash)
	}
	if !all[0].Published.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("published = %v", all[0].Published)
	}
	if all[1].Engagement["upvotes"] != 120 || all[1].Engagement["replies"] != 40 {
		t.Errorf("engagement = %v", all[1].Engagement)
	}
	if all[0].Engagement != nil {
		t.Errorf("article without engagement decoded as %v", all[0].Engagement)
	}
	if all[0].Type != source.SourceRSS || !all[0].IsTrending {
		t.Errorf("type/trending = %q/%v", all[0].Type, all[0].IsTrending)
	}

	tests := []struct {
		name string
		opts ListOpts
		want []string
	}{
		{"category", ListOpts{Category: "social-buzz"}, []string{"a3"}},
		{"source", ListOpts{Source: "Hacker News"}, []string{"a2"}},
		{"type", ListOpts{Type: source.SourceRSS}, []string{"a1"}},
		{"trending", ListOpts{TrendingOnly: true}, []string{"a1"}},
		{"since", ListOpts{Since: testNow.Add(-24 * time.Hour)}, []string{"a1", "a2"}},
		{"limit", ListOpts{Limit: 1}, []string{"a1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListArticles(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListArticles: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d articles, want %d", len(got), len(tt.want))
			}
			for i, h := range tt.want {
				if got[i].Hash != h {
					t.Errorf("[%d] = %s, want %s", i, got[i].Hash, h)
				}
			}
		})
	}
}

func TestUpsertArticlesUpdatesScore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	articles := testArticles()
	if err := s.UpsertArticles(ctx, articles, "b1"); err != nil {
		t.Fatal(err)
	}
	articles[0].TrendScore = 9.5
	articles[0].IsTrending = false
	if err := s.UpsertArticles(ctx, articles[:1], "b2"); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListArticles(ctx, ListOpts{Source: "Go Blog"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].TrendScore != 9.5 || got[0].IsTrending {
		t.Errorf("got %+v", got)
	}

	counts, err := s.CountArticlesBySource(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["Go Blog"] != 1 || counts["Hacker News"] != 1 || len(counts) != 3 {
		t.Errorf("counts = %v", counts)
	}
}

func TestPruneArticles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.UpsertArticles(ctx, testArticles(), "b1"); err != nil {
		t.Fatal(err)
	}
	n, err := s.PruneArticles(ctx, testNow.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
}

func TestTopicsReplace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := []trend.Topic{
		{Term: "GPT-5", Mentions: 4, Sources: []string{"A", "B"}, NumSources: 2, Velocity: 2, Direction: trend.DirectionNew, Score: 2.3},
		{Term: "Rust", Mentions: 3, Sources: []string{"A"}, NumSources: 1, Velocity: 1.2, Direction: trend.DirectionStable, Score: 1.2},
	}
	if err := s.ReplaceTopics(ctx, first, "b1"); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceTopics(ctx, first[1:], "b2"); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListTopics(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Term != "Rust" {
		t.Fatalf("topics = %+v", got)
	}
	if got[0].Direction != trend.DirectionStable || len(got[0].Sources) != 1 || got[0].Sources[0] != "A" {
		t.Errorf("topic = %+v", got[0])
	}
}

func TestBuilds(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.LastBuild(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty LastBuild err = %v, want ErrNotFound", err)
	}

	older := NewBuildRun(testNow.Add(-time.Hour))
	older.FinishedAt = older.StartedAt.Add(time.Minute)
	older.Status = BuildOK

	newer := NewBuildRun(testNow)
	newer.FinishedAt = testNow.Add(90 * time.Second)
	newer.Articles = 12
	newer.Status = BuildFailed
	newer.Error = "render site: disk full"

	for _, run := range []*BuildRun{older, newer} {
		if err := s.RecordBuild(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LastBuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != newer.ID || got.Articles != 12 || got.Error != newer.Error {
		t.Errorf("LastBuild = %+v", got)
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("duration = %v", got.Duration())
	}
	if older.ID == newer.ID {
		t.Error("build IDs should be unique")
	}
}

func TestSeenHashesTrim(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.MarkSeen(ctx, []string{"h1", "h2", "h3"}, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSeen(ctx, []string{"h3", "h4"}, 3); err != nil {
		t.Fatal(err)
	}

	seen, err := s.SeenHashes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen["h1"] || !seen["h4"] {
		t.Errorf("seen = %v, want h2..h4", seen)
	}
}

func TestAlerts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	topics := []trend.Topic{{Term: "GPT-5", Score: 3}, {Term: "Rust", Score: 2}}
	if err := s.MarkAlerted(ctx, topics[:1], testNow.Add(-30*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAlerted(ctx, topics[1:], testNow.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	got, err := s.AlertedSince(ctx, testNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if got["GPT-5"] || !got["Rust"] {
		t.Errorf("alerted = %v", got)
	}

	if err := s.MarkAlerted(ctx, topics[:1], testNow); err != nil {
		t.Fatal(err)
	}
	got, _ = s.AlertedSince(ctx, testNow.Add(-24*time.Hour))
	if !got["GPT-5"] {
		t.Error("re-alerted term should be recent")
	}
}
