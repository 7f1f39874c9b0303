package server

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/handlers"

	"github.com/elonfeng/signalfeed/internal/pipeline"
	"github.com/elonfeng/signalfeed/internal/store"
	"github.com/elonfeng/signalfeed/pkg/source"
)

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 500
)

// Builder triggers a build on demand.
type Builder interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Server provides the HTTP API and serves the generated site.
type Server struct {
	store   store.Store
	builder Builder
	siteDir string
	port    int
	logger  *slog.Logger
}

// New creates a new HTTP server. builder may be nil, which disables
// POST /api/v1/build.
func New(s store.Store, builder Builder, siteDir string, port int, logger *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   s,
		builder: builder,
		siteDir: siteDir,
		port:    port,
		logger:  logger,
	}
}

// Handler returns the routed API wrapped in recovery, access logging and
// compression middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/articles", s.handleArticles)
	mux.HandleFunc("/api/v1/topics", s.handleTopics)
	mux.HandleFunc("/api/v1/sources", s.handleSources)
	mux.HandleFunc("/api/v1/build", s.handleBuild)
	mux.HandleFunc("/api/v1/builds/latest", s.handleLatestBuild)
	if s.siteDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.siteDir)))
	}

	var h http.Handler = handlers.CompressHandler(mux)
	h = handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", srv.Addr, "site", s.siteDir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.logger.Info("http request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"took", time.Since(p.TimeStamp).Round(time.Millisecond))
}

type recoveryLogger struct{ logger *slog.Logger }

func (r recoveryLogger) Println(v ...any) {
	r.logger.Error("http panic", "err", fmt.Sprint(v...))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	opts := store.ListOpts{
		Category: q.Get("category"),
		Source:   q.Get("source"),
		Type:     source.SourceType(q.Get("type")),
		Limit:    defaultArticleLimit,
	}

	if v := q.Get("trending"); v != "" {
		trending, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid trending: "+v)
			return
		}
		opts.TrendingOnly = trending
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since: "+v)
			return
		}
		opts.Since = since
	}
	limit, ok := parseLimit(w, q.Get("limit"), defaultArticleLimit)
	if !ok {
		return
	}
	opts.Limit = limit

	articles, err := s.store.ListArticles(r.Context(), opts)
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  articles,
		"count": len(articles),
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, ok := parseLimit(w, r.URL.Query().Get("limit"), 0)
	if !ok {
		return
	}

	topics, err := s.store.ListTopics(r.Context(), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  topics,
		"count": len(topics),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := s.store.CountArticlesBySource(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	type sourceInfo struct {
		Name     string `json:"name"`
		Articles int    `json:"articles"`
	}

	infos := make([]sourceInfo, 0, len(counts))
	for name, n := range counts {
		infos = append(infos, sourceInfo{Name: name, Articles: n})
	}
	slices.SortFunc(infos, func(a, b sourceInfo) int {
		if c := cmp.Compare(b.Articles, a.Articles); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.builder == nil {
		writeError(w, http.StatusServiceUnavailable, "builds are disabled")
		return
	}

	res, err := s.builder.Run(r.Context())
	if errors.Is(err, pipeline.ErrBuildInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"build":  res.Run,
		"topics": res.Topics,
	})
}

func (s *Server) handleLatestBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	run, err := s.store.LastBuild(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no builds yet")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func parseLimit(w http.ResponseWriter, raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
		return 0, false
	}
	return min(n, maxArticleLimit), true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("server: request failed", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
