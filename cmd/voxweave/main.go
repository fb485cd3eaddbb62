// Command voxweave is the VoxWeave text-to-speech generation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxweave/voxweave/internal/app"
	"github.com/voxweave/voxweave/internal/config"
	"github.com/voxweave/voxweave/internal/observe"
	"github.com/voxweave/voxweave/pkg/provider/tts"
	"github.com/voxweave/voxweave/pkg/provider/tts/elevenlabs"
	"github.com/voxweave/voxweave/pkg/provider/tts/googletts"
	"github.com/voxweave/voxweave/pkg/provider/tts/openaitts"
	"github.com/voxweave/voxweave/pkg/provider/tts/polly"
)

// version is stamped by the build via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxweave: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(logger)

	slog.Info("voxweave starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"audio_dir", cfg.Audio.StorageDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OTel metrics with the Prometheus bridge behind /metrics.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxweave",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	creds := config.NewCredentials(cfg.Providers)
	registry := buildRegistry(creds)

	for _, p := range registry.List() {
		slog.Info("provider registered", "name", p.Name(), "configured", p.IsConfigured())
	}

	application, err := app.New(cfg, registry, creds,
		app.WithLogger(logger),
		app.WithVersion(version),
		app.WithMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// buildRegistry wires all four vendor adapters over the shared credential
// store. Adapters read credentials lazily, so keys set later through the
// settings API take effect without re-registration.
func buildRegistry(creds *config.Credentials) *tts.Registry {
	registry := tts.NewRegistry()
	registry.Register(googletts.New(creds))
	registry.Register(polly.New(creds))
	registry.Register(elevenlabs.New(creds))
	registry.Register(openaitts.New(creds))
	return registry
}

// newLogger builds the process-wide logger from config.
func newLogger(level config.LogLevel, format config.LogFormat) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == config.LogText {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
