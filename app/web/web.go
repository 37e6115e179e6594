// Package web implements the JSON API server for dispatching batch runs and
// inspecting run history and collected artifacts.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/scrapn/app/artifacts"
	"github.com/umputun/scrapn/app/batch"
	"github.com/umputun/scrapn/app/service/request"
	"github.com/umputun/scrapn/app/web/enums"
	"github.com/umputun/scrapn/app/web/persistence"
)

//go:generate moq -out mocks/persistence.go -pkg mocks -skip-ensure -fmt goimports . Persistence
//go:generate moq -out mocks/artifacts_reader.go -pkg mocks -skip-ensure -fmt goimports . ArtifactsReader

// Persistence defines storage operations for run history
type Persistence interface {
	RecordStart(run persistence.RunInfo) error
	RecordComplete(run persistence.RunInfo) error
	GetRuns(limit int) ([]persistence.RunInfo, error)
	GetRun(runUUID string) ([]persistence.RunInfo, error)
	CleanupOldRuns(limit int) error
	Close() error
}

// ArtifactsReader provides read access to collected artifact bundles
type ArtifactsReader interface {
	List(runUUID string) ([]artifacts.Manifest, error)
	FilePath(runUUID, bundle, name string) (string, error)
}

// runEvent carries run lifecycle updates from the orchestrator to the persistence loop
type runEvent struct {
	run      persistence.RunInfo
	complete bool
}

// Server represents the web server
type Server struct {
	store        Persistence
	artifacts    ArtifactsReader
	dispatch     chan<- batch.Spec
	eventChan    chan runEvent
	version      string
	hostname     string
	passwordHash string      // bcrypt hash for basic auth, empty disables auth
	proxy        batch.Proxy // default proxy applied when a dispatch request omits it
	historyLimit int         // max runs kept in the store
}

// Config holds server configuration
type Config struct {
	DBPath       string
	Hostname     string
	Version      string
	Dispatch     chan<- batch.Spec // channel for sending dispatched runs to the orchestrator
	Artifacts    ArtifactsReader   // store with collected run artifacts, optional
	PasswordHash string            // bcrypt hash for basic auth (empty to disable)
	Proxy        batch.Proxy       // default proxy credentials
	HistoryLimit int               // max runs kept in history, defaults to 1000
}

// New creates a new web server with a SQLite-backed run history
func New(cfg Config) (*Server, error) {
	if cfg.Dispatch == nil {
		return nil, fmt.Errorf("web server initialization failed: dispatch channel is required")
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to create SQLite store at %q: %w", cfg.DBPath, err)
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 1000
	}

	return &Server{
		store:        store,
		artifacts:    cfg.Artifacts,
		dispatch:     cfg.Dispatch,
		eventChan:    make(chan runEvent, 1000),
		version:      cfg.Version,
		hostname:     cfg.Hostname,
		passwordHash: cfg.PasswordHash,
		proxy:        cfg.Proxy,
		historyLimit: historyLimit,
	}, nil
}

// OnRunStart implements service.RunEventHandler, records the started run
func (s *Server) OnRunStart(req request.OnRunStart) {
	ev := runEvent{run: persistence.RunInfo{
		RunUUID:     req.RunUUID,
		BatchNumber: req.BatchNumber,
		ParentURL:   req.ParentURL,
		CSVFilename: req.CSVFilename,
		Links:       req.Links,
		Event:       req.Event,
		StartedAt:   req.StartTime,
	}}
	select {
	case s.eventChan <- ev:
	default:
		log.Printf("[WARN] event channel full, dropping start event for %s", req.RunUUID)
	}
}

// OnRunComplete implements service.RunEventHandler, records the finished run
func (s *Server) OnRunComplete(req request.OnRunComplete) {
	status := enums.RunStatusSuccess
	if req.Err != nil {
		status = enums.RunStatusFailed
	}
	ev := runEvent{complete: true, run: persistence.RunInfo{
		RunUUID:     req.RunUUID,
		BatchNumber: req.BatchNumber,
		ParentURL:   req.ParentURL,
		CSVFilename: req.CSVFilename,
		Links:       req.Links,
		Scraped:     req.Scraped,
		ResultFile:  req.ResultFile,
		Status:      status,
		Event:       req.Event,
		StartedAt:   req.StartTime,
		FinishedAt:  req.EndTime,
		Output:      req.Output,
	}}
	select {
	case s.eventChan <- ev:
	default:
		log.Printf("[WARN] event channel full, dropping complete event for %s", req.RunUUID)
	}
}

// Run starts the web server, blocking until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	go s.processEvents(ctx)

	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// processEvents persists run lifecycle events and trims old history
func (s *Server) processEvents(ctx context.Context) {
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.eventChan:
			var err error
			if ev.complete {
				err = s.store.RecordComplete(ev.run)
			} else {
				err = s.store.RecordStart(ev.run)
			}
			if err != nil {
				log.Printf("[WARN] failed to persist run event for %s: %v", ev.run.RunUUID, err)
			}
		case <-cleanup.C:
			if err := s.store.CleanupOldRuns(s.historyLimit); err != nil {
				log.Printf("[WARN] failed to cleanup run history: %v", err)
			}
		}
	}
}

var dispatchLimiter = tollbooth.NewLimiter(10, nil)

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("scrapn", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(1024*1024), // dispatch payload carries batch links, allow 1MB
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for the API")
		router.Use(s.authMiddleware)
	}

	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.With(tollbooth.HTTPMiddleware(dispatchLimiter)).HandleFunc("POST /dispatch", s.handleDispatch)
		api.HandleFunc("GET /status", s.handleStatus)
		api.HandleFunc("GET /runs", s.handleRuns)
		api.HandleFunc("GET /runs/{uuid}", s.handleRun)
		api.HandleFunc("GET /runs/{uuid}/logs", s.handleRunLogs)
		api.HandleFunc("GET /runs/{uuid}/artifacts", s.handleArtifacts)
		api.HandleFunc("GET /runs/{uuid}/artifacts/{bundle}/{name}", s.handleArtifactDownload)
	})

	return router
}
