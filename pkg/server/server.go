// Package server exposes build status over HTTP.
//
// Routes:
//
//	GET /health             liveness probe
//	GET /status             latest snapshot
//	GET /status/summary     job counts per status
//	GET /status/jobs/{id}   status of one job
//	GET /runs/{runID}       snapshot of a specific run (stores that support it)
//	GET /graph.dot          build graph colored by the latest statuses
//	GET /graph.svg          the same, rendered by Graphviz
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/render"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// Options configures a [Server].
type Options struct {
	// Graph enables the graph routes.
	Graph *dag.DAG

	Logger *log.Logger
}

// Server serves a [status.Store].
type Server struct {
	store  status.Store
	graph  *dag.DAG
	logger *log.Logger
	router chi.Router
}

// New creates a server reading from store.
func New(store status.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	s := &Server{store: store, graph: opts.Graph, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Route("/status", func(r chi.Router) {
		r.Get("/", s.handleLatest)
		r.Get("/summary", s.handleSummary)
		r.Get("/jobs/{id}", s.handleJob)
	})
	r.Get("/runs/{runID}", s.handleRun)
	r.Get("/graph.dot", s.handleDOT)
	r.Get("/graph.svg", s.handleSVG)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("status server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type summary struct {
	RunID     string         `json:"run_id"`
	Release   string         `json:"release,omitempty"`
	Arch      string         `json:"arch,omitempty"`
	Done      bool           `json:"done"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Total     int            `json:"total"`
	Counts    map[string]int `json:"counts"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary{
		RunID:     snap.RunID,
		Release:   snap.Release,
		Arch:      snap.Arch,
		Done:      snap.Done,
		Cancelled: snap.Cancelled,
		Total:     len(snap.Jobs),
		Counts:    snap.Counts(),
		UpdatedAt: snap.UpdatedAt,
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	st, found := snap.Jobs[id]
	if !found {
		writeError(w, http.StatusNotFound, "unknown job "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": st})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runs, ok := s.store.(status.RunStore)
	if !ok {
		writeError(w, http.StatusNotImplemented, "status store does not keep run history")
		return
	}
	snap, err := runs.Get(r.Context(), chi.URLParam(r, "runID"))
	if stderrors.Is(err, status.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	if err != nil {
		s.logger.Error("load run", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load run")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	dot, ok := s.dot(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = io.WriteString(w, dot)
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	dot, ok := s.dot(w, r)
	if !ok {
		return
	}
	svg, err := render.RenderSVG(r.Context(), dot)
	if err != nil {
		s.logger.Error("render graph", "err", err)
		writeError(w, http.StatusInternalServerError, "could not render graph")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func (s *Server) dot(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.graph == nil {
		writeError(w, http.StatusNotFound, "no build graph loaded")
		return "", false
	}
	opts := render.Options{}
	snap, err := s.store.Latest(r.Context())
	switch {
	case err == nil:
		opts.Statuses = snap.Jobs
		if snap.Release != "" {
			opts.Title = snap.Release + "/" + snap.Arch
		}
	case !stderrors.Is(err, status.ErrNoSnapshot):
		s.logger.Warn("load status for graph", "err", err)
	}
	return render.ToDOT(s.graph, opts), true
}

// latest loads the latest snapshot or writes an error response.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*status.Snapshot, bool) {
	snap, err := s.store.Latest(r.Context())
	if stderrors.Is(err, status.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "no build status recorded yet")
		return nil, false
	}
	if err != nil {
		s.logger.Error("load status", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load status")
		return nil, false
	}
	return snap, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
