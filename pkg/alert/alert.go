package alert

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/trend"
)

const (
	// Cooldown is how long a topic stays quiet after it was alerted.
	Cooldown = 24 * time.Hour

	maxLinks = 5
)

// Link is an article attached to a notification.
type Link struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Term       string          `json:"term"`
	Direction  trend.Direction `json:"direction"`
	Score      float64         `json:"score"`
	Velocity   float64         `json:"velocity"`
	Mentions   int             `json:"mentions"`
	NumSources int             `json:"num_sources"`
	Sources    []string        `json:"sources"`
	Links      []Link          `json:"links"`
	Time       time.Time       `json:"time"`
}

// Body is the one-line description shared by chat notifiers.
func (n *Notification) Body() string {
	return fmt.Sprintf("%s topic: %d mentions across %d sources, velocity %.2f",
		strings.ToUpper(string(n.Direction)), n.Mentions, n.NumSources, n.Velocity)
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Log remembers which topics were already alerted.
type Log interface {
	AlertedSince(ctx context.Context, since time.Time) (map[string]bool, error)
	MarkAlerted(ctx context.Context, topics []trend.Topic, at time.Time) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
	log       Log
	minScore  float64
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a new alert manager. A nil log disables the cooldown.
func NewManager(notifiers []Notifier, log Log, minScore float64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{notifiers: notifiers, log: log, minScore: minScore, logger: logger, now: time.Now}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NotifyTopics alerts on rising topics that clear the minimum score and were
// not alerted within Cooldown. It returns the topics that were delivered to
// at least one notifier without error.
func (m *Manager) NotifyTopics(ctx context.Context, topics []trend.Topic, articles []source.Article) ([]trend.Topic, error) {
	if !m.HasNotifiers() {
		return nil, nil
	}

	now := m.now()
	alerted := map[string]bool{}
	if m.log != nil {
		var err error
		if alerted, err = m.log.AlertedSince(ctx, now.Add(-Cooldown)); err != nil {
			return nil, fmt.Errorf("load alert log: %w", err)
		}
	}

	var sent []trend.Topic
	for _, t := range Select(topics, m.minScore, alerted) {
		n := NewNotification(t, articles, now)
		if err := m.Broadcast(ctx, n); err != nil {
			m.logger.Warn("alert: broadcast failed", "term", t.Term, "err", err)
			continue
		}
		sent = append(sent, t)
	}

	if m.log != nil && len(sent) > 0 {
		if err := m.log.MarkAlerted(ctx, sent, now); err != nil {
			return sent, fmt.Errorf("record alerts: %w", err)
		}
	}

	m.logger.Info("alert: topics notified", "sent", len(sent))
	return sent, nil
}

// Select filters topics that are new or rising, score at least minScore and
// are not in alerted.
func Select(topics []trend.Topic, minScore float64, alerted map[string]bool) []trend.Topic {
	var out []trend.Topic
	for _, t := range topics {
		if t.Direction != trend.DirectionNew && t.Direction != trend.DirectionUp {
			continue
		}
		if t.Score < minScore || alerted[t.Term] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// NewNotification builds the payload for a topic, linking the best scored
// articles that mention it.
func NewNotification(t trend.Topic, articles []source.Article, now time.Time) *Notification {
	var matched []source.Article
	for _, a := range articles {
		if strings.Contains(a.Title+" "+a.Summary, t.Term) {
			matched = append(matched, a)
		}
	}
	slices.SortStableFunc(matched, func(a, b source.Article) int {
		return cmp.Compare(b.TrendScore, a.TrendScore)
	})

	links := make([]Link, 0, min(len(matched), maxLinks))
	for _, a := range matched[:min(len(matched), maxLinks)] {
		links = append(links, Link{Title: a.Title, URL: a.Link, Source: a.Source})
	}

	return &Notification{
		Term:       t.Term,
		Direction:  t.Direction,
		Score:      t.Score,
		Velocity:   t.Velocity,
		Mentions:   t.Mentions,
		NumSources: t.NumSources,
		Sources:    t.Sources,
		Links:      links,
		Time:       now.UTC(),
	}
}
