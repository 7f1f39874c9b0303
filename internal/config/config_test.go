package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/elonfeng/signalfeed/pkg/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fetch.Workers != 10 {
		t.Errorf("workers = %d, want 10", cfg.Fetch.Workers)
	}
	if got := cfg.Schedule.ParseBuildInterval(); got != time.Hour {
		t.Errorf("build interval = %v, want 1h", got)
	}
	if got := cfg.Database.Retention(); got != 30*24*time.Hour {
		t.Errorf("retention = %v, want 720h", got)
	}
	if got := cfg.Fetch.ParseTimeout(); got != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", got)
	}
}

func TestLoadKeywordRefs(t *testing.T) {
	path := writeConfig(t, `
keywords:
  ai: [llm, "machine learning"]
filter:
  exclude_keywords: [sponsored]
feeds:
  - name: Inline
    url: https://example.com/a.xml
    keywords: [golang, rust]
  - name: Named
    url: https://example.com/b.xml
    category: tech
    keywords: ai
  - name: Sub
    url: https://www.reddit.com/r/golang/.rss
    type: reddit
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Feeds[0].Keywords.Terms; len(got) != 2 || got[0] != "golang" {
		t.Errorf("inline keywords = %v", got)
	}
	if got := cfg.Feeds[1].Keywords.Name; got != "ai" {
		t.Errorf("named keywords = %q, want ai", got)
	}
	if got := cfg.ResolveKeywords(cfg.Feeds[1].Keywords); len(got) != 2 || got[1] != "machine learning" {
		t.Errorf("resolved keywords = %v", got)
	}

	rss := cfg.SourceFeeds(source.SourceRSS)
	if len(rss) != 2 {
		t.Fatalf("rss feeds = %d, want 2", len(rss))
	}
	if rss[0].Category != "news" || rss[1].Category != "tech" {
		t.Errorf("categories = %q, %q", rss[0].Category, rss[1].Category)
	}
	if !rss[1].Filter.Match("New LLM released") {
		t.Error("named filter should match llm")
	}
	if rss[1].Filter.Match("Sponsored LLM webinar") {
		t.Error("exclude keyword should win")
	}

	reddit := cfg.SourceFeeds(source.SourceReddit)
	if len(reddit) != 1 || reddit[0].Category != "social-buzz" {
		t.Errorf("reddit feeds = %+v", reddit)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown list", "feeds:\n  - name: x\n    url: https://e.com\n    keywords: missing\n", "unknown keyword list"},
		{"bad type", "feeds:\n  - name: x\n    url: https://e.com\n    type: youtube\n", "unknown type"},
		{"no url", "feeds:\n  - name: x\n", "url is required"},
		{"bad keywords", "feeds:\n  - name: x\n    url: https://e.com\n    keywords: {a: b}\n", "keywords must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGNALFEED_DB_PATH", "/tmp/x.db")
	t.Setenv("SIGNALFEED_HISTORY_PATH", "/tmp/h.json")
	t.Setenv("SIGNALFEED_LOG_LEVEL", "debug")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/x.db" || cfg.History.Path != "/tmp/h.json" {
		t.Errorf("paths = %q, %q", cfg.Database.Path, cfg.History.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if !cfg.Alerts.Slack.Enabled || cfg.Alerts.Slack.WebhookURL == "" {
		t.Error("slack should be enabled by env")
	}
}
