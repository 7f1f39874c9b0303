package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/signalfeed/pkg/source"
)

// Config is the root configuration.
type Config struct {
	Log        LogConfig                 `yaml:"log"`
	Database   DatabaseConfig            `yaml:"database"`
	History    HistoryConfig             `yaml:"history"`
	Fetch      FetchConfig               `yaml:"fetch"`
	Feeds      []FeedConfig              `yaml:"feeds"`
	Keywords   map[string][]string       `yaml:"keywords"`
	Filter     FilterConfig              `yaml:"filter"`
	Categories map[string]CategoryConfig `yaml:"categories"`
	Twitter    TwitterConfig             `yaml:"twitter"`
	HackerNews HackerNewsConfig          `yaml:"hackernews"`
	Reddit     RedditConfig              `yaml:"reddit"`
	Site       SiteConfig                `yaml:"site"`
	Alerts     AlertsConfig              `yaml:"alerts"`
	Server     ServerConfig              `yaml:"server"`
	Schedule   ScheduleConfig            `yaml:"schedule"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// RetentionDays prunes stored articles older than this; 0 keeps all.
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the article retention window.
func (d DatabaseConfig) Retention() time.Duration {
	return time.Duration(d.RetentionDays) * 24 * time.Hour
}

// HistoryConfig locates the trend history file.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// FetchConfig controls how sources are fetched.
type FetchConfig struct {
	Workers    int    `yaml:"workers"`
	Timeout    string `yaml:"timeout"`
	UserAgent  string `yaml:"user_agent"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ParseTimeout returns the per-request timeout, falling back to 30s.
func (f FetchConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Options converts the fetch settings to collector options.
func (f FetchConfig) Options() source.Options {
	return source.Options{
		Timeout:   f.ParseTimeout(),
		UserAgent: f.UserAgent,
		Workers:   f.Workers,
		MaxAge:    time.Duration(f.MaxAgeDays) * 24 * time.Hour,
	}
}

// FeedConfig is one RSS or Reddit feed.
type FeedConfig struct {
	Name     string     `yaml:"name"`
	URL      string     `yaml:"url"`
	Category string     `yaml:"category"`
	Type     string     `yaml:"type"` // "rss" (default) or "reddit"
	Keywords KeywordRef `yaml:"keywords"`
}

// KeywordRef is either an inline keyword list or the name of a list under
// the top-level keywords section.
type KeywordRef struct {
	Name  string
	Terms []string
}

// UnmarshalYAML accepts a scalar (list name) or a sequence (inline list).
func (k *KeywordRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&k.Name)
	case yaml.SequenceNode:
		return node.Decode(&k.Terms)
	default:
		return fmt.Errorf("line %d: keywords must be a list or a list name", node.Line)
	}
}

// CategoryConfig describes how a category is displayed.
type CategoryConfig struct {
	Label string `yaml:"label"`
	Color string `yaml:"color"`
}

// FilterConfig configures content filtering shared by every feed.
type FilterConfig struct {
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// TwitterConfig for the X/Twitter search collector.
type TwitterConfig struct {
	Enabled   bool            `yaml:"enabled"`
	NitterURL string          `yaml:"nitter_url"`
	Searches  []TwitterSearch `yaml:"searches"`
}

// TwitterSearch is one search query.
type TwitterSearch struct {
	Query      string `yaml:"query"`
	Category   string `yaml:"category"`
	MaxResults int    `yaml:"max_results"`
}

// HackerNewsConfig for the Hacker News collector.
type HackerNewsConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Limit    int        `yaml:"limit"`
	Category string     `yaml:"category"`
	Keywords KeywordRef `yaml:"keywords"`
}

// RedditConfig holds optional OAuth credentials.
type RedditConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SiteConfig configures the static site generator.
type SiteConfig struct {
	OutputDir   string `yaml:"output_dir"`
	Title       string `yaml:"title"`
	Tagline     string `yaml:"tagline"`
	BaseURL     string `yaml:"base_url"`
	MaxHomepage int    `yaml:"max_homepage"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinScore float64       `yaml:"min_score"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig configures daemon mode.
type ScheduleConfig struct {
	BuildInterval string `yaml:"build_interval"`
}

// ParseBuildInterval returns the build interval as time.Duration.
func (s ScheduleConfig) ParseBuildInterval() time.Duration {
	d, err := time.ParseDuration(s.BuildInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Path: "./data/signalfeed.db", RetentionDays: 30},
		History:  HistoryConfig{Path: "./data/trends_history.json"},
		Fetch: FetchConfig{
			Workers:    10,
			Timeout:    "30s",
			UserAgent:  "signalfeed/1.0",
			MaxAgeDays: 7,
		},
		Feeds: []FeedConfig{
			{Name: "Hacker Noon", URL: "https://hackernoon.com/feed", Category: "tech"},
			{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/technology-lab", Category: "tech"},
			{Name: "r/technology", URL: "https://www.reddit.com/r/technology/.rss", Category: "social-buzz", Type: "reddit"},
		},
		Keywords: map[string][]string{},
		Categories: map[string]CategoryConfig{
			"tech":        {Label: "Tech", Color: "#2563eb"},
			"social-buzz": {Label: "Social Buzz", Color: "#db2777"},
			"news":        {Label: "News", Color: "#059669"},
		},
		Twitter: TwitterConfig{
			Enabled:   false,
			NitterURL: "https://nitter.net",
		},
		HackerNews: HackerNewsConfig{Enabled: true, Limit: 60, Category: "tech"},
		Site: SiteConfig{
			OutputDir:   "./site",
			Title:       "Signal Feed",
			Tagline:     "What the web is talking about",
			MaxHomepage: 60,
		},
		Alerts:   AlertsConfig{MinScore: 3},
		Server:   ServerConfig{Port: 8080},
		Schedule: ScheduleConfig{BuildInterval: "1h"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks feed definitions and keyword references.
func (c *Config) Validate() error {
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feed %d (%s): url is required", i, f.Name)
		}
		switch f.Type {
		case "", string(source.SourceRSS), string(source.SourceReddit):
		default:
			return fmt.Errorf("feed %s: unknown type %q", f.Name, f.Type)
		}
		if f.Keywords.Name != "" {
			if _, ok := c.Keywords[f.Keywords.Name]; !ok {
				return fmt.Errorf("feed %s: unknown keyword list %q", f.Name, f.Keywords.Name)
			}
		}
	}
	if c.HackerNews.Keywords.Name != "" {
		if _, ok := c.Keywords[c.HackerNews.Keywords.Name]; !ok {
			return fmt.Errorf("hackernews: unknown keyword list %q", c.HackerNews.Keywords.Name)
		}
	}
	return nil
}

// ResolveKeywords returns the keyword list a reference points to.
func (c *Config) ResolveKeywords(ref KeywordRef) []string {
	if ref.Name != "" {
		return c.Keywords[ref.Name]
	}
	return ref.Terms
}

// SourceFeeds returns the feeds of the given type ("rss" or "reddit") with
// keyword filters resolved.
func (c *Config) SourceFeeds(typ source.SourceType) []source.Feed {
	var feeds []source.Feed
	for _, f := range c.Feeds {
		ft := source.SourceType(f.Type)
		if ft == "" {
			ft = source.SourceRSS
		}
		if ft != typ {
			continue
		}

		category := f.Category
		if category == "" {
			category = "news"
			if ft == source.SourceReddit {
				category = "social-buzz"
			}
		}

		feeds = append(feeds, source.Feed{
			Name:     f.Name,
			URL:      f.URL,
			Category: category,
			Filter:   source.NewFilter(c.ResolveKeywords(f.Keywords), c.Filter.ExcludeKeywords),
		})
	}
	return feeds
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGNALFEED_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SIGNALFEED_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("SIGNALFEED_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Reddit.ClientSecret = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
