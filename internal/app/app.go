// Package app wires the VoxWeave subsystems into a running service.
//
// New connects the pipeline (ffmpeg tooling, audio store, job manager, HTTP
// server); Run owns the process lifetime through an errgroup: the HTTP
// listener, the job-store cleanup ticker, and the audio disk sweeper all stop
// together when the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxweave/voxweave/internal/audio"
	"github.com/voxweave/voxweave/internal/chunk"
	"github.com/voxweave/voxweave/internal/config"
	"github.com/voxweave/voxweave/internal/ffmpeg"
	"github.com/voxweave/voxweave/internal/jobs"
	"github.com/voxweave/voxweave/internal/observe"
	"github.com/voxweave/voxweave/internal/server"
	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

const (
	defaultSweepInterval = time.Hour
	shutdownTimeout      = 10 * time.Second
)

// App owns the service lifecycle. Construct with [New].
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observe.Metrics

	manager    *jobs.Manager
	audioStore *audio.Store
	httpSrv    *http.Server
	listener   net.Listener

	version       string
	sweepInterval time.Duration

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithVersion sets the version string reported by the health endpoint.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithMetrics sets the metrics instance shared by the pipeline and HTTP
// layer.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSweepInterval overrides the hourly cleanup cadence (for testing).
func WithSweepInterval(d time.Duration) Option {
	return func(a *App) { a.sweepInterval = d }
}

// WithListener serves on an existing listener instead of binding the
// configured address (for testing with port 0).
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New wires the pipeline together. The registry and credential store come
// from main, which knows how to construct the concrete providers.
func New(cfg *config.Config, registry *tts.Registry, creds *config.Credentials, opts ...Option) (*App, error) {
	a := &App{
		cfg:           cfg,
		logger:        slog.Default(),
		version:       "dev",
		sweepInterval: defaultSweepInterval,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	locator := ffmpeg.NewLocator()
	bins, err := locator.Locate()
	if err != nil {
		// The service still starts; synthesis fails per-job and the health
		// endpoint reports degraded.
		a.logger.Warn("ffmpeg not found, audio stitching unavailable", "error", err.Error())
	}

	store, err := audio.NewStore(cfg.Audio.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("app: audio store: %w", err)
	}
	a.audioStore = store

	stitcher := audio.NewStitcher(bins,
		audio.WithSilenceBetween(cfg.Audio.SilenceBetweenMS),
		audio.WithCrossfade(cfg.Audio.CrossfadeMS),
	)

	a.manager = jobs.NewManager(
		registry,
		chunk.NewChunker(),
		timing.NewNormalizer(),
		stitcher,
		store,
		jobs.NewStore(),
		jobs.WithLogger(a.logger),
		jobs.WithMetrics(a.metrics),
	)

	srv := server.New(a.manager, registry, creds, locator,
		server.WithLogger(a.logger),
		server.WithVersion(a.version),
		server.WithMetrics(a.metrics),
	)

	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run serves HTTP and runs the cleanup sweepers until ctx is cancelled, then
// shuts down gracefully. Returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("listening", "addr", a.addr())
		var err error
		if a.listener != nil {
			err = a.httpSrv.Serve(a.listener)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Shutdown(context.Background())
	})

	g.Go(func() error {
		a.sweepLoop(ctx)
		return nil
	})

	return g.Wait()
}

// Shutdown stops the HTTP server gracefully. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		err = a.httpSrv.Shutdown(sctx)
	})
	return err
}

// sweepLoop periodically drops expired jobs from memory and expired audio
// files from disk.
func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

func (a *App) sweep() {
	jobAge := time.Duration(a.cfg.Jobs.RetentionHours) * time.Hour
	if removed := a.manager.Store().CleanupOldJobs(jobAge); removed > 0 {
		a.logger.Info("expired jobs removed", "count", removed)
	}

	fileAge := time.Duration(a.cfg.Audio.RetentionHours) * time.Hour
	removed, err := a.audioStore.CleanupOlderThan(fileAge)
	if err != nil {
		a.logger.Warn("audio sweep failed", "error", err.Error())
		return
	}
	if removed > 0 {
		a.logger.Info("expired audio files removed", "count", removed)
	}
}

func (a *App) addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.cfg.Server.ListenAddr
}
