// Package site renders the static HTML site from a scored batch.
package site

import (
	"bytes"
	"cmp"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/elonfeng/signalfeed/pkg/source"
	"github.com/elonfeng/signalfeed/pkg/summary"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	// TrendingShown is how many trending articles the homepage highlights.
	TrendingShown = 6

	defaultMaxHomepage = 120
	unknownDate        = "Unknown date"
)

// Config describes the site being generated.
type Config struct {
	OutputDir   string
	Title       string
	Tagline     string
	BaseURL     string
	MaxHomepage int
	Categories  []summary.Category
}

// DateGroup is the articles published on one calendar day.
type DateGroup struct {
	Label    string
	Articles []source.Article
}

// Generator renders pages into Config.OutputDir.
type Generator struct {
	cfg    Config
	pages  map[string]*template.Template
	logger *slog.Logger
	now    func() time.Time
}

type page struct {
	Site        Config
	Active      string
	Summary     summary.Summary
	Groups      []DateGroup
	Trending    []source.Article
	Total       int
	SourceCount int
	BuildTime   time.Time

	Category        summary.Category
	CategoryCount   int
	CategorySources int
}

// New parses the embedded templates.
func New(cfg Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxHomepage <= 0 {
		cfg.MaxHomepage = defaultMaxHomepage
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	g := &Generator{cfg: cfg, logger: logger, now: time.Now, pages: make(map[string]*template.Template)}

	for _, name := range []string{"index.html", "archive.html", "category.html"} {
		t, err := template.New(name).Funcs(g.funcs()).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		g.pages[name] = t
	}
	return g, nil
}

func (g *Generator) funcs() template.FuncMap {
	labels := make(map[string]summary.Category, len(g.cfg.Categories))
	for _, c := range g.cfg.Categories {
		labels[c.ID] = c
	}

	return template.FuncMap{
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return humanize.RelTime(t, g.now(), "ago", "from now")
		},
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"catLabel": func(id string) string {
			if c, ok := labels[id]; ok && c.Label != "" {
				return c.Label
			}
			return id
		},
		"catColor": func(id string) string {
			if c, ok := labels[id]; ok && c.Color != "" {
				return c.Color
			}
			return "#64748b"
		},
	}
}

// Generate writes index.html, archive.html, one page per category and the
// stylesheet. Articles are not modified.
func (g *Generator) Generate(articles []source.Article, sum summary.Summary) error {
	sorted := slices.Clone(articles)
	slices.SortStableFunc(sorted, func(a, b source.Article) int {
		return b.Published.Compare(a.Published)
	})

	var trending []source.Article
	for _, a := range sorted {
		if a.IsTrending {
			trending = append(trending, a)
		}
	}
	slices.SortStableFunc(trending, func(a, b source.Article) int {
		return cmp.Compare(b.TrendScore, a.TrendScore)
	})

	base := page{
		Site:        g.cfg,
		Summary:     sum,
		Total:       len(sorted),
		SourceCount: countSources(sorted),
		BuildTime:   g.now().UTC(),
	}

	if err := os.MkdirAll(filepath.Join(g.cfg.OutputDir, "category"), 0o755); err != nil {
		return fmt.Errorf("create site dir: %w", err)
	}

	home := base
	home.Active = "home"
	home.Groups = GroupByDate(sorted[:min(len(sorted), g.cfg.MaxHomepage)])
	home.Trending = trending[:min(len(trending), TrendingShown)]
	if err := g.render("index.html", "index.html", home); err != nil {
		return err
	}

	archive := base
	archive.Active = "archive"
	archive.Groups = GroupByDate(sorted)
	if err := g.render("archive.html", "archive.html", archive); err != nil {
		return err
	}

	for _, c := range g.cfg.Categories {
		var inCat []source.Article
		for _, a := range sorted {
			if a.Category == c.ID {
				inCat = append(inCat, a)
			}
		}

		p := base
		p.Active = c.ID
		p.Category = c
		p.CategoryCount = len(inCat)
		p.CategorySources = countSources(inCat)
		p.Groups = GroupByDate(inCat)
		if err := g.render("category.html", filepath.Join("category", c.ID+".html"), p); err != nil {
			return err
		}
	}

	if err := g.copyStatic(); err != nil {
		return err
	}

	g.logger.Info("site: generated",
		"dir", g.cfg.OutputDir, "articles", len(sorted),
		"sources", base.SourceCount, "categories", len(g.cfg.Categories))
	return nil
}

func (g *Generator) render(tmpl, name string, data page) error {
	var buf bytes.Buffer
	if err := g.pages[tmpl].ExecuteTemplate(&buf, "base.html", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	path := filepath.Join(g.cfg.OutputDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	g.logger.Debug("site: wrote page", "path", path)
	return nil
}

func (g *Generator) copyStatic() error {
	return fs.WalkDir(staticFS, "static", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, "static")
		dst := filepath.Join(g.cfg.OutputDir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}

		data, err := staticFS.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("copy %s: %w", rel, err)
		}
		return nil
	})
}

// GroupByDate buckets articles by UTC publication day, newest day first.
// Articles keep their relative order inside a day. Undated articles form a
// final "Unknown date" group.
func GroupByDate(articles []source.Article) []DateGroup {
	var (
		groups  []DateGroup
		index   = make(map[string]int)
		days    = make(map[string]time.Time)
		unknown []source.Article
	)

	for _, a := range articles {
		if a.Published.IsZero() {
			unknown = append(unknown, a)
			continue
		}
		day := a.Published.UTC().Truncate(24 * time.Hour)
		label := day.Format("Monday, January 2, 2006")
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			days[label] = day
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}

	slices.SortStableFunc(groups, func(a, b DateGroup) int {
		return days[b.Label].Compare(days[a.Label])
	})

	if len(unknown) > 0 {
		groups = append(groups, DateGroup{Label: unknownDate, Articles: unknown})
	}
	return groups
}

func countSources(articles []source.Article) int {
	seen := make(map[string]bool)
	for _, a := range articles {
		seen[a.Source] = true
	}
	return len(seen)
}
