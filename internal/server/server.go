// Package server exposes the flow engine over HTTP: a small JSON API for
// driving runs, a websocket stream of state snapshots for live observers,
// and the Prometheus metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gantrylabs/gantry/internal/engine"
	"github.com/gantrylabs/gantry/internal/flow"
)

// FlowSource supplies the flow definitions the server can run.
type FlowSource interface {
	// Flows returns every known definition.
	Flows() ([]*flow.Definition, error)

	// Find returns the definition with the given name, or an error.
	Find(name string) (*flow.Definition, error)
}

// Config holds server configuration.
type Config struct {
	Listen         string
	AllowedOrigins []string
}

// Server is the web driver over one Executor.
type Server struct {
	cfg        Config
	exec       *engine.Executor
	flows      FlowSource
	metrics    *prometheus.Registry
	logger     *log.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates the server. metrics may be nil, disabling the /metrics
// endpoint.
func New(cfg Config, exec *engine.Executor, flows FlowSource, metrics *prometheus.Registry, logger *log.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		exec:    exec,
		flows:   flows,
		metrics: metrics,
		logger:  logger,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/summary", s.handleSummary)
		r.Get("/flows", s.handleFlows)
		r.Post("/run", s.handleRun)
		r.Post("/abort", s.handleAbort)
		r.Post("/reset", s.handleReset)
	})

	r.Get("/ws", s.handleWebsocket)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			s.metrics, promhttp.HandlerOpts{},
		))
	}

	return r
}

// Router returns the underlying router. Used by tests.
func (s *Server) Router() chi.Router { return s.router }

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("web driver listening", "addr", s.cfg.Listen)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.exec.State())
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	state := s.exec.State()
	writeJSON(w, http.StatusOK, state.Summarize())
}

// flowInfo is the list representation of one definition.
type flowInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Stages      int    `json:"stages"`
	Fingerprint string `json:"fingerprint"`
}

func (s *Server) handleFlows(w http.ResponseWriter, _ *http.Request) {
	defs, err := s.flows.Flows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]flowInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, flowInfo{
			Name:        def.Name,
			Description: def.Description,
			Stages:      len(def.Stages),
			Fingerprint: def.Fingerprint(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flow string `json:"flow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Flow == "" {
		writeError(w, http.StatusBadRequest, "flow name is required")
		return
	}

	def, err := s.flows.Find(req.Flow)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// Pre-check for a friendly 409; Execute itself enforces exclusivity, so
	// a race here just surfaces in the log instead.
	if s.exec.State().Status == engine.StatusRunning {
		writeError(w, http.StatusConflict, "a run is already active")
		return
	}

	go func() {
		final, err := s.exec.Execute(context.Background(), def)
		if err != nil {
			s.logger.Error("run rejected", "flow", def.Name, "error", err)
			return
		}
		s.logger.Info("run finished", "flow", def.Name, "status", final.Status)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"flow": def.Name, "status": "started"})
}

func (s *Server) handleAbort(w http.ResponseWriter, _ *http.Request) {
	s.exec.Abort()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "aborting"})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.exec.Reset(); err != nil {
		if errors.Is(err, engine.ErrRunActive) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
