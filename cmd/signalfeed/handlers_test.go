package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/elonfeng/signalfeed/internal/config"
	"github.com/elonfeng/signalfeed/pkg/source"
)

type namedSource source.SourceType

func (n namedSource) Name() source.SourceType { return source.SourceType(n) }

func (n namedSource) Collect(context.Context) ([]source.Article, error) { return nil, nil }

func TestSelectSources(t *testing.T) {
	t.Parallel()

	all := []source.Source{
		namedSource(source.SourceRSS),
		namedSource(source.SourceHackerNews),
		namedSource(source.SourceReddit),
	}

	tests := []struct {
		only    []string
		want    int
		wantErr bool
	}{
		{[]string{"hn"}, 1, false},
		{[]string{"HN", " rss "}, 2, false},
		{[]string{string(source.SourceHackerNews)}, 1, false},
		{[]string{"youtube"}, 0, true},
		{[]string{"twitter"}, 0, true},
	}

	for _, tt := range tests {
		got, err := selectSources(all, tt.only)
		if (err != nil) != tt.wantErr {
			t.Errorf("selectSources(%v) err = %v", tt.only, err)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("selectSources(%v) = %d sources, want %d", tt.only, len(got), tt.want)
		}
	}
}

func TestBuildSources(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Twitter.Enabled = true
	cfg.Twitter.Searches = []config.TwitterSearch{{Query: "golang", Category: "tech"}}

	var names []source.SourceType
	for _, s := range buildSources(cfg, nil) {
		names = append(names, s.Name())
	}

	want := []source.SourceType{source.SourceRSS, source.SourceReddit, source.SourceHackerNews, source.SourceTwitter}
	if len(names) != len(want) {
		t.Fatalf("sources = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("source %d = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestCategoriesSorted(t *testing.T) {
	t.Parallel()

	cats := categories(config.Default())
	for i := 1; i < len(cats); i++ {
		if cats[i-1].ID >= cats[i].ID {
			t.Fatalf("categories not sorted: %v", cats)
		}
	}
	if len(cats) == 0 || cats[0].Label == "" {
		t.Errorf("categories = %v", cats)
	}
}

func TestEnsureParentDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data", "nested", "signalfeed.db")
	if err := ensureParentDir(path); err != nil {
		t.Fatalf("ensureParentDir: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("parent dir not created: %v", err)
	}

	// A bare file name lives in the working directory; nothing to create.
	if err := ensureParentDir("signalfeed.db"); err != nil {
		t.Errorf("bare name: %v", err)
	}
	if _, err := os.Stat("signalfeed.db"); !os.IsNotExist(err) {
		t.Errorf("bare name created something: %v", err)
	}
}
