// corepf daemon -- mesh routing control plane (session manager + pathfinder).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/dantte-lp/corepf/internal/config"
	"github.com/dantte-lp/corepf/internal/cryptosession"
	corepfmetrics "github.com/dantte-lp/corepf/internal/metrics"
	"github.com/dantte-lp/corepf/internal/pathfinder"
	"github.com/dantte-lp/corepf/internal/pfchan"
	"github.com/dantte-lp/corepf/internal/session"
	appversion "github.com/dantte-lp/corepf/internal/version"
)

// shutdownTimeout is the maximum time to wait for the metrics server to
// drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// sessionTickInterval is how often the session table's periodic
// maintenance (Table.Tick) runs.
const sessionTickInterval = 10 * time.Second

// pathfinderTickInterval is how often the pathfinder's janitor maintenance
// (Pathfinder.Tick) runs; set to the local maintenance cadence so the
// fast pinned-node pass doesn't fall behind its own configured interval.
const pathfinderTickInterval = 1 * time.Second

// flightRecorderMinAge and flightRecorderMaxBytes size the Go 1.26
// runtime/trace flight recorder used for post-mortem debugging.
const (
	flightRecorderMinAge   = 500 * time.Millisecond
	flightRecorderMaxBytes = 2 * 1024 * 1024 // 2 MiB
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	instanceID := uuid.NewString()

	logger.Info("corepf starting",
		slog.String("version", appversion.Version),
		slog.String("instance_id", instanceID),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	if logLevel.Level() <= slog.LevelDebug {
		if dump, err := yaml.Marshal(cfg); err == nil {
			logger.Debug("effective configuration", slog.String("yaml", string(dump)))
		}
	}

	fr := startFlightRecorder(logger)

	if err := runServers(cfg, logger, *configPath, logLevel, fr); err != nil {
		logger.Error("corepf exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("corepf stopped")
	return 0
}

// runServers wires the session table and pathfinder together over a
// pfchan.Chan, starts the metrics HTTP server, and runs everything under
// one errgroup with signal-aware shutdown.
func runServers(
	cfg *config.Config,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
) error {
	ourPriv, ourPub, err := cryptosession.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate node identity: %w", err)
	}

	events := pfchan.New(pfchan.DefaultBufferSize)

	reg := prometheus.NewRegistry()

	sessCfg := session.Config{
		SessionTimeout:      cfg.Session.SessionTimeout,
		SessionSearchAfter:  cfg.Session.SessionSearchAfter,
		MaxBufferedMessages: cfg.Session.MaxBufferedMessages,
		CryptoTimeout:       cfg.Session.CryptoTimeout,
	}
	tbl, err := session.NewTable(ourPriv, ourPub, events, sessCfg, logger.With(slog.String("component", "session")))
	if err != nil {
		return fmt.Errorf("build session table: %w", err)
	}

	pfCfg := pathfinder.Config{
		RumorMillCapacity:     cfg.Pathfinder.RumorMillCapacity,
		JanitorLocalInterval:  cfg.Pathfinder.JanitorLocalInterval,
		JanitorGlobalInterval: cfg.Pathfinder.JanitorGlobalInterval,
	}
	pf := pathfinder.New(events, pfCfg, logger.With(slog.String("component", "pathfinder")))

	collector := corepfmetrics.NewCollector(reg, tbl, pf)
	tbl.SetMetrics(collector)

	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	if err := tbl.Connect(gCtx); err != nil {
		return fmt.Errorf("send initial connect: %w", err)
	}

	g.Go(func() error { return pf.Run(gCtx) })
	g.Go(func() error { return tbl.RunPathfinderEvents(gCtx) })
	g.Go(func() error { return runSessionTicker(gCtx, tbl) })
	g.Go(func() error { return runPathfinderTicker(gCtx, pf, logger) })

	startHTTPServer(gCtx, g, cfg.Metrics, metricsSrv, logger)
	startSIGHUPHandler(gCtx, g, configPath, logLevel, logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, fr, metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// runSessionTicker drives the session table's periodic maintenance at a
// fixed cadence until ctx is done.
func runSessionTicker(ctx context.Context, tbl *session.Table) error {
	ticker := time.NewTicker(sessionTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tbl.Tick(ctx)
		}
	}
}

// runPathfinderTicker drives the pathfinder's janitor maintenance at a
// fixed cadence until ctx is done.
func runPathfinderTicker(ctx context.Context, pf *pathfinder.Pathfinder, logger *slog.Logger) error {
	ticker := time.NewTicker(pathfinderTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if searched := pf.Tick(now); len(searched) > 0 {
				logger.Debug("pathfinder: maintenance searches started", slog.Int("count", len(searched)))
			}
		}
	}
}

// startHTTPServer registers the metrics HTTP server goroutine.
func startHTTPServer(ctx context.Context, g *errgroup.Group, cfg config.MetricsConfig, srv *http.Server, logger *slog.Logger) {
	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Addr), slog.String("path", cfg.Path))
		return listenAndServe(ctx, &lc, srv, cfg.Addr)
	})
}

// startSIGHUPHandler registers a goroutine that reloads the dynamic log
// level on SIGHUP. Unlike the teacher's daemon, corepf has no declarative
// session list to reconcile, so reload only affects the log level.
func startSIGHUPHandler(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigHUP:
				logger.Info("received SIGHUP, reloading configuration")
				reloadLogLevel(configPath, logLevel, logger)
			}
		}
	})
}

func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
		return
	}
	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)
	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}

// gracefulShutdown stops the flight recorder and drains the metrics
// server. The parent context is already cancelled when this is called;
// a fresh timeout context is derived internally for the drain.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, fr *trace.FlightRecorder, srv *http.Server) error {
	logger.Info("initiating graceful shutdown")

	if fr != nil {
		fr.Stop()
		logger.Debug("flight recorder stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})
	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)
	return fr
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
