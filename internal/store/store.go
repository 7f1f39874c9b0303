package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/trend"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Build statuses.
const (
	BuildOK     = "ok"
	BuildFailed = "failed"
)

// BuildRun records one pipeline execution.
type BuildRun struct {
	ID         string    `db:"id" json:"id"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Fetched    int       `db:"fetched" json:"fetched"`
	Articles   int       `db:"articles" json:"articles"`
	Trending   int       `db:"trending" json:"trending"`
	Topics     int       `db:"topics" json:"topics"`
	Status     string    `db:"status" json:"status"`
	Error      string    `db:"error" json:"error,omitempty"`
}

// NewBuildRun starts a run record with a fresh ID.
func NewBuildRun(started time.Time) *BuildRun {
	return &BuildRun{ID: uuid.NewString(), StartedAt: started.UTC()}
}

// Duration is the wall time of the run.
func (b *BuildRun) Duration() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}

// ListOpts controls article listing.
type ListOpts struct {
	Category     string
	Source       string
	Type         source.SourceType
	TrendingOnly bool
	Since        time.Time
	Limit        int
}

// Store is the persistence interface.
type Store interface {
	UpsertArticles(ctx context.Context, articles []source.Article, buildID string) error
	ListArticles(ctx context.Context, opts ListOpts) ([]source.Article, error)
	CountArticlesBySource(ctx context.Context) (map[string]int, error)
	PruneArticles(ctx context.Context, before time.Time) (int64, error)

	ReplaceTopics(ctx context.Context, topics []trend.Topic, buildID string) error
	ListTopics(ctx context.Context, limit int) ([]trend.Topic, error)

	RecordBuild(ctx context.Context, run *BuildRun) error
	LastBuild(ctx context.Context) (*BuildRun, error)

	SeenHashes(ctx context.Context) (map[string]bool, error)
	MarkSeen(ctx context.Context, hashes []string, keep int) error

	AlertedSince(ctx context.Context, since time.Time) (map[string]bool, error)
	MarkAlerted(ctx context.Context, topics []trend.Topic, at time.Time) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

var articleColumns = []string{
	"hash", "title", "link", "summary", "source", "category", "type", "author",
	"published", "engagement", "trend_score", "is_trending",
}

var topicColumns = []string{
	"term", "mentions", "sources", "num_sources", "velocity", "direction", "score",
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertArticles(ctx context.Context, articles []source.Article, buildID string) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert articles: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO articles (hash, title, link, summary, source, category, type, author,
			published, engagement, trend_score, is_trending, build_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			engagement = excluded.engagement,
			trend_score = excluded.trend_score,
			is_trending = excluded.is_trending,
			build_id = excluded.build_id
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert articles: %w", err)
	}
	defer stmt.Close()

	for i := range articles {
		a := &articles[i]
		engagement, _ := json.Marshal(a.Engagement)
		if a.Engagement == nil {
			engagement = []byte("{}")
		}
		_, err := stmt.ExecContext(ctx, a.Hash, a.Title, a.Link, a.Summary, a.Source,
			a.Category, string(a.Type), a.Author, a.Published.UTC(), string(engagement),
			a.TrendScore, a.IsTrending, buildID)
		if err != nil {
			return fmt.Errorf("upsert article %s: %w", a.Hash, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListArticles(ctx context.Context, opts ListOpts) ([]source.Article, error) {
	q := sq.Select(articleColumns...).From("articles")

	if opts.Category != "" {
		q = q.Where(sq.Eq{"category": opts.Category})
	}
	if opts.Source != "" {
		q = q.Where(sq.Eq{"source": opts.Source})
	}
	if opts.Type != "" {
		q = q.Where(sq.Eq{"type": string(opts.Type)})
	}
	if opts.TrendingOnly {
		q = q.Where(sq.Eq{"is_trending": true})
	}
	if !opts.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"published": opts.Since.UTC()})
	}

	if opts.TrendingOnly {
		q = q.OrderBy("trend_score DESC", "published DESC")
	} else {
		q = q.OrderBy("published DESC", "hash")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	var articles []source.Article
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	for i := range articles {
		decodeEngagement(&articles[i])
	}
	return articles, nil
}

func decodeEngagement(a *source.Article) {
	if a.EngagementJSON == "" || a.EngagementJSON == "{}" || a.EngagementJSON == "null" {
		return
	}
	_ = json.Unmarshal([]byte(a.EngagementJSON), &a.Engagement)
}

func (s *SQLiteStore) CountArticlesBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) AS cnt FROM articles GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count articles by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		counts[src] = cnt
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) PruneArticles(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := sq.Delete("articles").Where(sq.Lt{"published": before.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune articles: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune articles: %w", err)
	}
	return res.RowsAffected()
}

// ReplaceTopics swaps the stored topic ranking for the given one.
func (s *SQLiteStore) ReplaceTopics(ctx context.Context, topics []trend.Topic, buildID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace topics: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM topics"); err != nil {
		return fmt.Errorf("clear topics: %w", err)
	}

	for i, t := range topics {
		sources, _ := json.Marshal(t.Sources)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO topics (term, position, mentions, sources, num_sources, velocity, direction, score, build_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.Term, i, t.Mentions, string(sources), t.NumSources, t.Velocity, string(t.Direction), t.Score, buildID)
		if err != nil {
			return fmt.Errorf("insert topic %q: %w", t.Term, err)
		}
	}

	return tx.Commit()
}

// ListTopics returns the stored ranking in its original order.
func (s *SQLiteStore) ListTopics(ctx context.Context, limit int) ([]trend.Topic, error) {
	q := sq.Select(topicColumns...).From("topics").OrderBy("position")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list topics: %w", err)
	}

	var topics []trend.Topic
	if err := s.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	for i := range topics {
		_ = json.Unmarshal([]byte(topics[i].SourcesJSON), &topics[i].Sources)
	}
	return topics, nil
}

func (s *SQLiteStore) RecordBuild(ctx context.Context, run *BuildRun) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO builds (id, started_at, finished_at, fetched, articles, trending, topics, status, error)
		VALUES (:id, :started_at, :finished_at, :fetched, :articles, :trending, :topics, :status, :error)
	`, run)
	if err != nil {
		return fmt.Errorf("record build %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LastBuild(ctx context.Context) (*BuildRun, error) {
	var run BuildRun
	err := s.db.GetContext(ctx, &run, "SELECT * FROM builds ORDER BY started_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last build: %w", err)
	}
	return &run, nil
}

func (s *SQLiteStore) SeenHashes(ctx context.Context) (map[string]bool, error) {
	var hashes []string
	if err := s.db.SelectContext(ctx, &hashes, "SELECT hash FROM seen_hashes"); err != nil {
		return nil, fmt.Errorf("load seen hashes: %w", err)
	}

	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		seen[h] = true
	}
	return seen, nil
}

// MarkSeen records hashes and trims the table to the keep most recently
// added entries.
func (s *SQLiteStore) MarkSeen(ctx context.Context, hashes []string, keep int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark seen: %w", err)
	}
	defer tx.Rollback()

	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO seen_hashes (hash) VALUES (?)", h); err != nil {
			return fmt.Errorf("mark seen %s: %w", h, err)
		}
	}

	if keep > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM seen_hashes
			WHERE id NOT IN (SELECT id FROM seen_hashes ORDER BY id DESC LIMIT ?)
		`, keep)
		if err != nil {
			return fmt.Errorf("trim seen hashes: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) AlertedSince(ctx context.Context, since time.Time) (map[string]bool, error) {
	query, args, err := sq.Select("term").From("alerts").
		Where(sq.GtOrEq{"alerted_at": since.UTC()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build alerted since: %w", err)
	}

	var terms []string
	if err := s.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, fmt.Errorf("alerted since: %w", err)
	}

	alerted := make(map[string]bool, len(terms))
	for _, t := range terms {
		alerted[t] = true
	}
	return alerted, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, topics []trend.Topic, at time.Time) error {
	for _, t := range topics {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO alerts (term, score, alerted_at) VALUES (?, ?, ?)
			ON CONFLICT(term) DO UPDATE SET score = excluded.score, alerted_at = excluded.alerted_at
		`, t.Term, t.Score, at.UTC())
		if err != nil {
			return fmt.Errorf("mark alerted %q: %w", t.Term, err)
		}
	}
	return nil
}
