package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/firefly-engineering/skillctl/internal/config"
	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/ledger"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/monitor"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

// LedgerStats is the part of the ledger the dashboard reads.
type LedgerStats interface {
	Stats(ctx context.Context) (ledger.Stats, error)
}

// Deps holds everything the dashboard reads from or drives.
type Deps struct {
	Config    *config.Config
	SkillsDir string
	Runner    *runner.Runner
	Incidents *incident.Store
	// Ledger is optional; /api/ledger/stats returns 503 without it.
	Ledger LedgerStats
	// CaptureFailures opens an incident for every dashboard run that fails.
	CaptureFailures bool
}

// Server is the dashboard HTTP server.
type Server struct {
	deps Deps

	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Config == nil {
		deps.Config = config.Defaults()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{deps: deps, runCtx: ctx, cancelRun: cancel}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/skills", s.handleListSkills)
		r.Post("/skills/{name}/run", s.handleRunSkill)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/log", s.handleRunLog)
		r.Get("/runs/{id}/artifacts", s.handleListArtifacts)
		r.Get("/runs/{id}/artifacts/*", s.handleGetArtifact)

		r.Get("/incidents", s.handleListIncidents)
		r.Get("/incidents/{id}", s.handleGetIncident)

		r.Get("/ledger/stats", s.handleLedgerStats)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, running the reaper
// alongside. On shutdown it stops accepting requests, then cancels and waits
// for runs started from the dashboard.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	cfg := s.deps.Config.Dashboard
	if cfg.ReapInterval.Duration > 0 {
		m := monitor.New(cfg.ReapInterval.Duration, s.deps.Runner,
			monitor.WithTimeout(cfg.RunTimeout.Duration),
			monitor.WithReapHook(s.captureFailure),
		)
		go func() {
			if err := m.Run(reaperCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn("run reaper exited", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logging.UserInfo("Dashboard listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logging.UserInfo("Shutting down dashboard...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels runs started from the dashboard and waits for them to
// record their outcome.
func (s *Server) Close() {
	s.cancelRun()
	s.runs.Wait()
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) captureFailure(job *runner.Job) {
	if !s.deps.CaptureFailures || s.deps.Incidents == nil || job.Status != runner.StatusFailed {
		return
	}
	if _, err := s.deps.Incidents.CaptureRun(job, "", "dashboard"); err != nil {
		logging.Warn("failed to capture incident", "run_id", job.RunID, "error", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
