// Package pipeline runs one build: fetch, dedup, score, summarize, render,
// persist and alert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elonfeng/signalfeed/internal/store"
	"github.com/elonfeng/signalfeed/pkg/alert"
	"github.com/elonfeng/signalfeed/pkg/dedup"
	"github.com/elonfeng/signalfeed/pkg/site"
	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/summary"
	"github.com/elonfeng/signalfeed/pkg/trend"
)

// ErrBuildInProgress is returned when Run is called while another build is
// still running.
var ErrBuildInProgress = errors.New("build already in progress")

// Deps wires the collaborators of a build. Site and Alerts are optional.
type Deps struct {
	Sources     []source.Source
	Workers     int
	Store       store.Store
	HistoryPath string
	Categories  []summary.Category
	Site        *site.Generator
	Alerts      *alert.Manager
	// Retention drops stored articles published before now minus Retention.
	// Zero keeps everything.
	Retention time.Duration
	Logger    *slog.Logger
}

// Result is the outcome of one build.
type Result struct {
	Run      *store.BuildRun
	Articles []source.Article
	Topics   []trend.Topic
	Summary  summary.Summary
	Alerted  []trend.Topic
}

// Pipeline executes builds. Builds never overlap.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// New constructs the build pipeline.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{deps: deps, logger: logger, now: time.Now}
}

// Run executes one build and records it in the store, whether it succeeded
// or not.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if !p.mu.TryLock() {
		return nil, ErrBuildInProgress
	}
	defer p.mu.Unlock()

	run := store.NewBuildRun(p.now())
	log := p.logger.With("build", run.ID)
	log.Info("build: starting", "sources", len(p.deps.Sources))

	res, err := p.build(ctx, run, log)

	run.FinishedAt = p.now().UTC()
	run.Status = store.BuildOK
	if err != nil {
		run.Status = store.BuildFailed
		run.Error = err.Error()
	}

	// Record with a fresh context so cancelled builds still leave a trace.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := p.deps.Store.RecordBuild(recordCtx, run); rerr != nil {
		log.Error("build: record run failed", "err", rerr)
		if err == nil {
			err = rerr
		}
	}

	if err != nil {
		log.Error("build: failed", "err", err, "duration", run.Duration())
		return nil, err
	}

	log.Info("build: complete",
		"articles", run.Articles, "trending", run.Trending,
		"topics", run.Topics, "duration", run.Duration())
	return res, nil
}

func (p *Pipeline) build(ctx context.Context, run *store.BuildRun, log *slog.Logger) (*Result, error) {
	fetched := source.FetchAll(ctx, p.deps.Sources, p.deps.Workers, log)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	run.Fetched = len(fetched)

	dd, err := dedup.New(ctx, p.deps.Store, log)
	if err != nil {
		return nil, err
	}
	articles := dd.Deduplicate(fetched)

	history := trend.LoadHistory(p.deps.HistoryPath, log, trend.WithHistoryClock(p.now))
	scorer := trend.NewScorer(history, trend.WithClock(p.now), trend.WithLogger(log))
	articles = scorer.ScoreArticles(articles)
	topics := scorer.TrendingTopics()

	sum := summary.Generate(articles, topics, p.deps.Categories, p.now(), log)

	if p.deps.Site != nil {
		if err := p.deps.Site.Generate(articles, sum); err != nil {
			return nil, fmt.Errorf("render site: %w", err)
		}
	}

	if err := p.deps.Store.UpsertArticles(ctx, articles, run.ID); err != nil {
		return nil, fmt.Errorf("store articles: %w", err)
	}
	if err := p.deps.Store.ReplaceTopics(ctx, topics, run.ID); err != nil {
		return nil, fmt.Errorf("store topics: %w", err)
	}
	if p.deps.Retention > 0 {
		n, err := p.deps.Store.PruneArticles(ctx, p.now().Add(-p.deps.Retention))
		if err != nil {
			return nil, fmt.Errorf("prune articles: %w", err)
		}
		if n > 0 {
			log.Info("build: pruned old articles", "count", n)
		}
	}

	var alerted []trend.Topic
	if p.deps.Alerts != nil {
		// Alert failures never fail the build.
		alerted, err = p.deps.Alerts.NotifyTopics(ctx, topics, articles)
		if err != nil {
			log.Warn("build: alerts failed", "err", err)
		}
	}

	if err := dd.Save(ctx); err != nil {
		return nil, err
	}
	if err := scorer.SaveHistory(); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}

	run.Articles = len(articles)
	run.Trending = sum.TrendingCount
	run.Topics = len(topics)

	return &Result{
		Run:      run,
		Articles: articles,
		Topics:   topics,
		Summary:  sum,
		Alerted:  alerted,
	}, nil
}
