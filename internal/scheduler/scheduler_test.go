package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elonfeng/signalfeed/internal/pipeline"
	"github.com/elonfeng/signalfeed/internal/store"
)

type countingBuilder struct {
	calls  atomic.Int32
	err    error
	target int32
	done   chan struct{}
}

func (b *countingBuilder) Run(context.Context) (*pipeline.Result, error) {
	n := b.calls.Add(1)
	if n == b.target {
		close(b.done)
	}
	if b.err != nil {
		return nil, b.err
	}
	return &pipeline.Result{Run: &store.BuildRun{ID: "run"}}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunBuildsImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"ok", nil},
		{"failing builds keep the loop alive", errors.New("boom")},
		{"overlap", pipeline.ErrBuildInProgress},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := &countingBuilder{err: tt.err, target: 3, done: make(chan struct{})}
			s := New(b, 10*time.Millisecond, quietLogger())

			ctx, cancel := context.WithCancel(context.Background())
			errc := make(chan error, 1)
			go func() { errc <- s.Run(ctx) }()

			select {
			case <-b.done:
			case <-time.After(5 * time.Second):
				t.Fatal("scheduler did not build three times")
			}
			cancel()

			if err := <-errc; !errors.Is(err, context.Canceled) {
				t.Errorf("Run() = %v, want context.Canceled", err)
			}
		})
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	t.Parallel()

	s := New(&countingBuilder{}, 0, nil)
	if s.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", s.interval)
	}
}
