package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/elonfeng/signalfeed/internal/pipeline"
)

// Builder runs one build.
type Builder interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Scheduler runs periodic builds.
type Scheduler struct {
	builder  Builder
	interval time.Duration
	logger   *slog.Logger
}

// New creates a new scheduler.
func New(builder Builder, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		builder:  builder,
		interval: interval,
		logger:   logger,
	}
}

// Run builds immediately and then on every tick. Blocks until ctx is
// cancelled. A failed build is logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler: initial build")
	s.build(ctx)

	s.logger.Info("scheduler: running", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.build(ctx)
		}
	}
}

func (s *Scheduler) build(ctx context.Context) {
	res, err := s.builder.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrBuildInProgress):
		s.logger.Info("scheduler: build already running, skipping tick")
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Error("scheduler: build failed", "err", err)
		}
	default:
		s.logger.Info("scheduler: build done",
			"build", res.Run.ID, "articles", res.Run.Articles, "trending", res.Run.Trending)
	}
}
