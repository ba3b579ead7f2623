package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/handler/ws"
	"IndiPull/internal/service/ratelimit"
	"IndiPull/internal/usecase"
	"IndiPull/pkg/cache"
	pkgch "IndiPull/pkg/clickhouse"
	"IndiPull/pkg/config"
	xhttp "IndiPull/pkg/http"
	applogger "IndiPull/pkg/logger"
)

// limiter buckets idle this long are dropped
const limiterIdle = 30 * time.Minute

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	dash       *usecase.Dashboard
	httpServer *xhttp.Server
	hub        *ws.Hub
	limiter    *ratelimit.Limiter
	publisher  drepo.AlertPublisher
	cache      cache.Service
	chClient   *pkgch.Client
	scheduler  *Scheduler
}

// New creates a new App instance with all dependencies. chClient is nil when
// no component uses ClickHouse.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	dash *usecase.Dashboard,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	limiter *ratelimit.Limiter,
	publisher drepo.AlertPublisher,
	cacheSvc cache.Service,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		dash:       dash,
		httpServer: httpServer,
		hub:        hub,
		limiter:    limiter,
		publisher:  publisher,
		cache:      cacheSvc,
		chClient:   chClient,
		scheduler:  NewScheduler(logger),
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts the jobs and the HTTP server, then shuts everything down once
// ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.schedule(); err != nil {
		return err
	}

	// first build runs in the background so the listener comes up at once
	go func() {
		if _, err := a.dash.Rebuild(ctx); err != nil {
			a.logger.Warn("initial build failed", applogger.Error(err))
		}
	}()

	a.scheduler.Start()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) schedule() error {
	jobs := []Job{
		{
			Name:    "rebuild",
			Spec:    a.cfg.Refresh.Schedule,
			Timeout: 2 * a.cfg.Sources.Timeout,
			Run: func(ctx context.Context) error {
				_, err := a.dash.Rebuild(ctx)
				return err
			},
		},
		{
			Name: "limiter-sweep",
			Spec: "@every 10m",
			Run: func(context.Context) error {
				if n := a.limiter.Sweep(limiterIdle); n > 0 {
					a.logger.Debug("rate limiter swept", applogger.Int("buckets", n))
				}
				return nil
			},
		},
	}
	if a.cfg.History.Backend != "none" {
		jobs = append(jobs, Job{
			Name:    "archive",
			Spec:    a.cfg.Refresh.ArchiveSchedule,
			Timeout: time.Minute,
			Run:     a.dash.Archive,
		})
	}
	for _, j := range jobs {
		if err := a.scheduler.Add(j); err != nil {
			return err
		}
	}
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down...")

	if err := a.scheduler.Stop(ctx); err != nil {
		a.logger.Warn("scheduler stop error", applogger.Error(err))
	}
	if err := a.hub.Close(); err != nil {
		a.logger.Warn("websocket hub close error", applogger.Error(err))
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	// Close infrastructure clients
	type closer struct {
		name string
		c    io.Closer
	}
	closers := []closer{{"alert publisher", a.publisher}, {"cache", a.cache}}
	if a.chClient != nil {
		closers = append(closers, closer{"clickhouse", a.chClient})
	}
	var firstErr error
	for _, cl := range closers {
		if err := cl.c.Close(); err != nil {
			a.logger.Warn(cl.name+" close error", applogger.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", cl.name, err)
			}
		}
	}

	a.logger.Info("shutdown complete")
	return firstErr
}
