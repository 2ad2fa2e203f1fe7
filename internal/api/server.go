package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/heliplan/heliplan-core/internal/infrastructure/config"
	"github.com/heliplan/heliplan-core/internal/infrastructure/logging"
	"github.com/heliplan/heliplan-core/internal/planner"
	"github.com/heliplan/heliplan-core/internal/schedule"
	"github.com/heliplan/heliplan-core/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// PlanQueue accepts re-evaluation requests without blocking. The plan
// engine consumes queued requests on its own goroutine, so a slow
// rebuild never stalls request handling.
type PlanQueue interface {
	Enqueue(req planner.ReEvalRequest)
}

// ScheduleSource is the slice of the scheduler the API reads and pokes.
// Satisfied by *schedule.Scheduler.
type ScheduleSource interface {
	Snapshot() []schedule.JobInfo
	Closest(ref time.Time, tags []string, strategy schedule.Strategy, allowOverlap bool) (schedule.JobInfo, error)
	RunJob(id string) error
}

// HealthChecker is implemented by the infrastructure clients surfaced
// on the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check names one component on the health endpoint.
type Check struct {
	Name    string
	Checker HealthChecker
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Engine   PlanQueue
	Schedule ScheduleSource
	Store    store.Store

	// Checks are polled by GET /health. Nil checkers are skipped.
	Checks []Check

	// ExternalHub, when set, is used instead of a server-owned hub. The
	// plan engine broadcasts activations through it, so it must exist
	// before the engine does.
	ExternalHub *Hub

	// Now supplies the clock for schedule views, localized to the site
	// timezone. Defaults to time.Now.
	Now func() time.Time

	Version string
}

// Server is the HTTP API server for heliplan.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	engine   PlanQueue
	sched    ScheduleSource
	store    store.Store
	checks   []Check
	now      func() time.Time
	version  string
	server   *http.Server
	hub      *Hub
	external bool
	cancel   context.CancelFunc

	ticketMu sync.Mutex
	tickets  map[string]ticketEntry
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: logger is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("api: plan engine is required")
	}
	if deps.Schedule == nil {
		return nil, errors.New("api: schedule source is required")
	}
	if deps.Store == nil {
		return nil, errors.New("api: variable store is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		engine:  deps.Engine,
		sched:   deps.Schedule,
		store:   deps.Store,
		checks:  deps.Checks,
		now:     deps.Now,
		version: deps.Version,
		tickets: make(map[string]ticketEntry),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.external = true
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub (unless one was
// injected externally) and the ticket cleanup loop, and launches the
// HTTP listener in a background goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Expired WebSocket tickets accumulate if clients request them and
	// never connect; sweep periodically.
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Hub returns the WebSocket hub the server broadcasts through.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
