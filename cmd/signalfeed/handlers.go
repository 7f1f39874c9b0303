package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/signalfeed/internal/config"
	"github.com/elonfeng/signalfeed/internal/logging"
	"github.com/elonfeng/signalfeed/internal/pipeline"
	"github.com/elonfeng/signalfeed/internal/scheduler"
	"github.com/elonfeng/signalfeed/internal/store"
	"github.com/elonfeng/signalfeed/pkg/alert"
	"github.com/elonfeng/signalfeed/pkg/server"
	"github.com/elonfeng/signalfeed/pkg/site"
	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/summary"
)

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.SQLiteStore
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := ensureParentDir(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() error { return a.db.Close() }

// ensureParentDir creates the directory holding path, if it has one.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func buildSources(cfg *config.Config, logger *slog.Logger) []source.Source {
	opts := cfg.Fetch.Options()
	opts.Logger = logger

	var sources []source.Source

	if feeds := cfg.SourceFeeds(source.SourceRSS); len(feeds) > 0 {
		sources = append(sources, source.NewRSS(feeds, opts))
	}
	if feeds := cfg.SourceFeeds(source.SourceReddit); len(feeds) > 0 {
		sources = append(sources, source.NewReddit(feeds, cfg.Reddit.ClientID, cfg.Reddit.ClientSecret, opts))
	}
	if cfg.HackerNews.Enabled {
		filter := source.NewFilter(cfg.ResolveKeywords(cfg.HackerNews.Keywords), cfg.Filter.ExcludeKeywords)
		sources = append(sources, source.NewHackerNews(cfg.HackerNews.Limit, cfg.HackerNews.Category, filter, opts))
	}
	if cfg.Twitter.Enabled && len(cfg.Twitter.Searches) > 0 {
		searches := make([]source.TwitterSearch, len(cfg.Twitter.Searches))
		for i, s := range cfg.Twitter.Searches {
			searches[i] = source.TwitterSearch{Query: s.Query, Category: s.Category, MaxResults: s.MaxResults}
		}
		sources = append(sources, source.NewTwitter(cfg.Twitter.NitterURL, searches, opts))
	}

	return sources
}

// categories returns the configured categories sorted by id so pages and
// summaries are stable across runs.
func categories(cfg *config.Config) []summary.Category {
	ids := make([]string, 0, len(cfg.Categories))
	for id := range cfg.Categories {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]summary.Category, len(ids))
	for i, id := range ids {
		c := cfg.Categories[id]
		out[i] = summary.Category{ID: id, Label: c.Label, Color: c.Color}
	}
	return out
}

func buildAlertManager(cfg *config.Config, db store.Store, logger *slog.Logger) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers, db, cfg.Alerts.MinScore, logger)
}

func (a *app) pipeline(sources []source.Source) (*pipeline.Pipeline, error) {
	cats := categories(a.cfg)
	gen, err := site.New(site.Config{
		OutputDir:   a.cfg.Site.OutputDir,
		Title:       a.cfg.Site.Title,
		Tagline:     a.cfg.Site.Tagline,
		BaseURL:     a.cfg.Site.BaseURL,
		MaxHomepage: a.cfg.Site.MaxHomepage,
		Categories:  cats,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("load site templates: %w", err)
	}

	return pipeline.New(pipeline.Deps{
		Sources:     sources,
		Workers:     a.cfg.Fetch.Workers,
		Store:       a.db,
		HistoryPath: a.cfg.History.Path,
		Categories:  cats,
		Site:        gen,
		Alerts:      buildAlertManager(a.cfg, a.db, a.logger),
		Retention:   a.cfg.Database.Retention(),
		Logger:      a.logger,
	}), nil
}

func runBuild(ctx context.Context, only []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sources := buildSources(a.cfg, a.logger)
	if len(only) > 0 {
		if sources, err = selectSources(sources, only); err != nil {
			return err
		}
	}

	p, err := a.pipeline(sources)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nbuilt %s articles (%d fetched) from %d sources in %s, %d trending, momentum %s\n",
		humanize.Comma(int64(res.Run.Articles)), res.Run.Fetched, res.Summary.ActiveSources,
		res.Run.Duration().Round(time.Millisecond), res.Run.Trending, res.Summary.Momentum)
	return nil
}

func selectSources(all []source.Source, only []string) ([]source.Source, error) {
	known := make(map[string]bool)
	for _, st := range source.AllSourceTypes() {
		known[string(st)] = true
		known[shortName(st)] = true
	}

	wanted := make(map[string]bool)
	for _, s := range only {
		name := strings.ToLower(strings.TrimSpace(s))
		if !known[name] {
			return nil, fmt.Errorf("unknown source %q", s)
		}
		wanted[name] = true
	}

	var sources []source.Source
	for _, s := range all {
		if wanted[string(s.Name())] || wanted[shortName(s.Name())] {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no enabled sources match: %s", strings.Join(only, ", "))
	}
	return sources, nil
}

func runTrends(ctx context.Context, jsonOutput bool, limit int) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topics, err := a.db.ListTopics(ctx, limit)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(topics)
	}

	if len(topics) == 0 {
		fmt.Println("no trends found (try building first: signalfeed build)")
		return nil
	}

	if run, err := a.db.LastBuild(ctx); err == nil {
		fmt.Printf("last build %s: %d articles, %d trending\n\n",
			humanize.Time(run.FinishedAt), run.Articles, run.Trending)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("last build: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tDIRECTION\tVELOCITY\tMENTIONS\tSOURCES\tTERM")
	for _, t := range topics {
		fmt.Fprintf(w, "%.2f\t%s\t%.2f\t%d\t%d\t%s\n",
			t.Score, t.Direction, t.Velocity, t.Mentions, t.NumSources, t.Term)
	}
	return w.Flush()
}

func runServe(ctx context.Context, port int) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	p, err := a.pipeline(buildSources(a.cfg, a.logger))
	if err != nil {
		return err
	}

	srv := server.New(a.db, p, a.cfg.Site.OutputDir, port, a.logger)
	return srv.ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	p, err := a.pipeline(buildSources(a.cfg, a.logger))
	if err != nil {
		return err
	}

	sched := scheduler.New(p, a.cfg.Schedule.ParseBuildInterval(), a.logger)
	srv := server.New(a.db, p, a.cfg.Site.OutputDir, port, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	return g.Wait()
}

func shortName(st source.SourceType) string {
	switch st {
	case source.SourceHackerNews:
		return "hn"
	case source.SourceReddit:
		return "reddit"
	case source.SourceTwitter:
		return "twitter"
	case source.SourceRSS:
		return "rss"
	}
	return string(st)
}
