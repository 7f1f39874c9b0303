package trend

import (
	"log/slog"
	"sort"
	"time"

	"github.com/elonfeng/signalfeed/pkg/source"
)

const (
	// MinMentions is the count below which a term is treated as noise.
	MinMentions = 2
	// TopTrendingCount is both the rank of the trending cutoff article and
	// the number of topics reported.
	TopTrendingCount = 15
	// TrendingFloor is the minimum score for anything to count as trending.
	TrendingFloor = 0.5

	topicCandidates   = 100
	topicSourceSample = 5
)

// Direction describes how a topic moves relative to its history.
type Direction string

const (
	DirectionNew    Direction = "new"
	DirectionUp     Direction = "up"
	DirectionStable Direction = "stable"
	DirectionDown   Direction = "down"
)

// Topic is a reporting view of a scored term.
type Topic struct {
	Term        string    `json:"term" db:"term"`
	Mentions    int       `json:"mentions" db:"mentions"`
	Sources     []string  `json:"sources" db:"-"`
	NumSources  int       `json:"num_sources" db:"num_sources"`
	Velocity    float64   `json:"velocity" db:"velocity"`
	Direction   Direction `json:"direction" db:"direction"`
	Score       float64   `json:"score" db:"score"`
	SourcesJSON string    `json:"-" db:"sources"`
}

// Scorer runs one scoring pass over a batch of articles. It owns the pass's
// mention counters, so independent passes never share state. A Scorer is not
// safe for concurrent use.
type Scorer struct {
	history *History
	logger  *slog.Logger
	now     func() time.Time

	mentions   map[string]int
	sources    map[string][]string
	order      []string
	termScores map[string]float64
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock overrides the clock used for article age.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// WithLogger sets the scorer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

// NewScorer starts a scoring pass against history. A nil history behaves as
// an empty one that cannot be saved.
func NewScorer(history *History, opts ...Option) *Scorer {
	s := &Scorer{
		history:    history,
		logger:     slog.Default(),
		now:        time.Now,
		mentions:   make(map[string]int),
		sources:    make(map[string][]string),
		termScores: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = &History{logger: s.logger, now: s.now}
	}
	return s
}

// ScoreArticles assigns TrendScore and IsTrending to every article and
// returns the same slice. Input order is preserved.
func (s *Scorer) ScoreArticles(articles []source.Article) []source.Article {
	// Phase 1: count mentions and the distinct sources behind them.
	for i := range articles {
		for _, term := range ExtractTerms(articleText(&articles[i])) {
			s.mention(term, articles[i].Source)
		}
	}

	// Phase 2: score every term that is more than a single mention.
	for _, term := range s.order {
		count := s.mentions[term]
		if count < MinMentions {
			continue
		}
		velocity := Velocity(s.history.Average(term), count)
		s.termScores[term] = velocity * CrossSourceBonus(len(s.sources[term]))
	}

	// Phase 3: an article is as hot as its hottest term, adjusted for
	// engagement and age.
	now := s.now()
	for i := range articles {
		a := &articles[i]

		best := 0.0
		for _, term := range ExtractTerms(articleText(a)) {
			if v, ok := s.termScores[term]; ok && v > best {
				best = v
			}
		}

		age := time.Duration(0)
		if !a.Published.IsZero() {
			age = now.Sub(a.Published)
		}

		a.TrendScore = round2(best * EngagementFactor(a.Engagement) * TemporalWeight(age))
	}

	// Phase 4: the 15th best score sets the bar, never below the floor.
	bar := trendingThreshold(articles)
	trending := 0
	for i := range articles {
		articles[i].IsTrending = articles[i].TrendScore >= bar
		if articles[i].IsTrending {
			trending++
		}
	}

	s.logger.Info("trends: articles scored",
		"articles", len(articles), "terms", len(s.mentions),
		"scored_terms", len(s.termScores), "trending", trending, "threshold", bar)

	return articles
}

func trendingThreshold(articles []source.Article) float64 {
	cutoff := TrendingFloor
	if len(articles) >= TopTrendingCount {
		scores := make([]float64, len(articles))
		for i := range articles {
			scores[i] = articles[i].TrendScore
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
		cutoff = scores[TopTrendingCount-1]
	}
	return max(cutoff, TrendingFloor)
}

// TrendingTopics ranks the terms counted by ScoreArticles. Only terms with at
// least MinMentions mentions and a velocity of at least 1.0 qualify. Topics
// with equal scores keep their mention-count order.
func (s *Scorer) TrendingTopics() []Topic {
	ranked := s.rankedMentions()
	if len(ranked) > topicCandidates {
		ranked = ranked[:topicCandidates]
	}

	var topics []Topic
	for _, tc := range ranked {
		if tc.Count < MinMentions {
			continue
		}

		avg := s.history.Average(tc.Term)
		velocity := Velocity(avg, tc.Count)
		if velocity < 1.0 {
			continue
		}

		sources := s.sources[tc.Term]
		sample := sources
		if len(sample) > topicSourceSample {
			sample = sample[:topicSourceSample]
		}

		topics = append(topics, Topic{
			Term:       tc.Term,
			Mentions:   tc.Count,
			Sources:    append([]string(nil), sample...),
			NumSources: len(sources),
			Velocity:   round2(velocity),
			Direction:  direction(avg, velocity),
			Score:      round2(velocity * CrossSourceBonus(len(sources))),
		})
	}

	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Score > topics[j].Score })
	if len(topics) > TopTrendingCount {
		topics = topics[:TopTrendingCount]
	}
	return topics
}

func direction(historicalAvg, velocity float64) Direction {
	switch {
	case historicalAvg == 0:
		return DirectionNew
	case velocity > 1.5:
		return DirectionUp
	case velocity > 0.8:
		return DirectionStable
	default:
		return DirectionDown
	}
}

// TermScores returns a copy of the per-term scores from the last pass.
func (s *Scorer) TermScores() map[string]float64 {
	out := make(map[string]float64, len(s.termScores))
	for k, v := range s.termScores {
		out[k] = v
	}
	return out
}

// Mentions returns the current pass's term counts, highest first.
func (s *Scorer) Mentions() []TermCount {
	return s.rankedMentions()
}

// SaveHistory persists this pass's mention counts as a new snapshot.
func (s *Scorer) SaveHistory() error {
	return s.history.Save(s.discoveryOrder())
}

func (s *Scorer) mention(term, src string) {
	if _, ok := s.mentions[term]; !ok {
		s.order = append(s.order, term)
	}
	s.mentions[term]++

	for _, existing := range s.sources[term] {
		if existing == src {
			return
		}
	}
	s.sources[term] = append(s.sources[term], src)
}

func (s *Scorer) discoveryOrder() []TermCount {
	out := make([]TermCount, len(s.order))
	for i, term := range s.order {
		out[i] = TermCount{Term: term, Count: s.mentions[term]}
	}
	return out
}

// rankedMentions sorts terms by count, ties in discovery order.
func (s *Scorer) rankedMentions() []TermCount {
	out := s.discoveryOrder()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func articleText(a *source.Article) string {
	return a.Title + " " + a.Summary
}
