package trend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// MaxHistoryAge is the rolling window of snapshots kept on disk.
	MaxHistoryAge = 7 * 24 * time.Hour
	// SnapshotTermLimit caps the number of terms stored per snapshot.
	SnapshotTermLimit = 200

	// Fixed-width UTC layout: string order must equal time order, because
	// pruning compares timestamps lexicographically.
	snapshotLayout = "2006-01-02T15:04:05.000000-07:00"
)

// Snapshot is one persisted record of term mention counts.
type Snapshot struct {
	Timestamp string         `json:"timestamp"`
	Mentions  map[string]int `json:"mentions"`
}

// TermCount pairs a term with its mention count in one run.
type TermCount struct {
	Term  string
	Count int
}

// History is the append-then-prune list of snapshots backing velocity.
type History struct {
	path      string
	snapshots []Snapshot
	logger    *slog.Logger
	now       func() time.Time
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithHistoryClock overrides the clock used for pruning and timestamps.
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(h *History) { h.now = now }
}

// LoadHistory reads the snapshots stored at path. A missing file yields an
// empty history; an unreadable or corrupt one is logged and also yields an
// empty history, which the next Save overwrites.
func LoadHistory(path string, logger *slog.Logger, opts ...HistoryOption) *History {
	if logger == nil {
		logger = slog.Default()
	}
	h := &History{path: path, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}

	if path == "" {
		return h
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("trends: unreadable history, starting fresh", "path", path, "error", err)
		}
		return h
	}

	var snapshots []Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		logger.Warn("trends: corrupted history, starting fresh", "path", path, "error", err)
		return h
	}

	h.snapshots = snapshots
	h.prune()
	logger.Debug("trends: history loaded", "path", path, "snapshots", len(h.snapshots))
	return h
}

// Snapshots returns a copy of the retained snapshots, oldest first.
func (h *History) Snapshots() []Snapshot {
	out := make([]Snapshot, len(h.snapshots))
	copy(out, h.snapshots)
	return out
}

// Len returns the number of retained snapshots.
func (h *History) Len() int { return len(h.snapshots) }

// Average returns the mean count of term across retained snapshots, counting
// snapshots without the term as zero.
func (h *History) Average(term string) float64 {
	if len(h.snapshots) == 0 {
		return 0
	}
	total := 0
	for _, s := range h.snapshots {
		total += s.Mentions[term]
	}
	return float64(total) / float64(len(h.snapshots))
}

// Save appends a snapshot of the top SnapshotTermLimit terms by count, prunes
// expired snapshots and atomically rewrites the history file. Equal counts
// keep the order in which mentions were given.
func (h *History) Save(mentions []TermCount) error {
	if h.path == "" {
		return errors.New("save history: no path configured")
	}

	ranked := make([]TermCount, len(mentions))
	copy(ranked, mentions)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if len(ranked) > SnapshotTermLimit {
		ranked = ranked[:SnapshotTermLimit]
	}

	top := make(map[string]int, len(ranked))
	for _, tc := range ranked {
		top[tc.Term] = tc.Count
	}

	h.snapshots = append(h.snapshots, Snapshot{
		Timestamp: formatTimestamp(h.now()),
		Mentions:  top,
	})
	h.prune()

	data, err := json.MarshalIndent(h.snapshots, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := writeFileAtomic(h.path, data); err != nil {
		return fmt.Errorf("save history %s: %w", h.path, err)
	}

	h.logger.Info("trends: saved snapshot", "terms", len(mentions), "kept", len(top), "snapshots", len(h.snapshots))
	return nil
}

func (h *History) prune() {
	cutoff := formatTimestamp(h.now().Add(-MaxHistoryAge))
	kept := h.snapshots[:0]
	for _, s := range h.snapshots {
		if s.Timestamp >= cutoff {
			kept = append(kept, s)
		}
	}
	h.snapshots = kept
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(snapshotLayout)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
