// Package api is the HTTP surface of the notebook service.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/capability"
	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/config"
	"github.com/ariavasulin/YouLearn/internal/enrich"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compiler builds compile targets.
type Compiler interface {
	Compile(ctx context.Context, target string) (*compile.Result, error)
}

// Deps are the components the server exposes.
type Deps struct {
	Notebook  *notebook.Notebook
	Compiler  Compiler
	Artifacts *compile.ArtifactStore
	Enricher  *enrich.Orchestrator
	// Stats holds latency statistics per capability name.
	Stats map[string]*capability.LatencyStats
}

// Server is the HTTP API server for a notebook.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/artifacts/{name}", s.handleArtifact)

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", s.handleReadFile)
		r.Put("/files", s.handleWriteFile)
		r.Get("/dirs", s.handleListDir)

		r.Get("/leaves", s.handleListLeaves)
		r.Post("/leaves", s.handleCreateLeaf)

		r.Post("/compile", s.handleCompile)
		r.Post("/import", s.handleImport)

		r.Post("/sessions/ended", s.handleSessionEnded)
		r.Route("/enrich", func(r chi.Router) {
			r.Post("/{pass}/trigger", s.handleTrigger)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{runID}", s.handleRun)
			r.Get("/report", s.handleReport)
			r.Get("/narrative", s.handleNarrative)
		})

		r.Get("/stats/capabilities", s.handleCapabilityStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
