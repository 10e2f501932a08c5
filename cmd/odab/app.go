package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/odab/internal/catalogue"
	"github.com/MrWong99/odab/internal/config"
	"github.com/MrWong99/odab/internal/health"
	"github.com/MrWong99/odab/internal/observe"
)

// shutdownTimeout bounds telemetry flushing and admin server shutdown.
const shutdownTimeout = 15 * time.Second

// defaultConfigPath is read when --config is not given and the file exists.
const defaultConfigPath = "odab.yaml"

// app carries what PersistentPreRunE sets up for the subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	level    *slog.LevelVar
	log      *slog.Logger
	registry *config.Registry
	metrics  *observe.Metrics

	checkers []health.Checker
	closers  []func(context.Context) error
}

// setup loads the configuration and installs logging and telemetry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		lvl := config.LogLevel(strings.ToLower(a.logLevel))
		if !lvl.IsValid() {
			return fmt.Errorf("invalid --log-level %q", a.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	a.cfg = cfg

	a.level = new(slog.LevelVar)
	a.level.Set(slogLevel(cfg.Server.LogLevel))
	a.log = slog.New(newHandler(cmd.ErrOrStderr(), cfg.Server, a.level))
	slog.SetDefault(a.log)

	shutdown, err := observe.InitProvider(cmd.Context(), observe.ProviderConfig{ServiceName: "odab", ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)
	a.metrics = observe.DefaultMetrics()

	a.registry = config.NewRegistry()
	registerBuiltinProviders(a.registry)
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return config.LoadFromReader(strings.NewReader(""))
		}
		path = defaultConfigPath
	}
	return config.Load(path)
}

// close runs the registered closers in reverse order.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.Warn("shutdown incomplete", "err", err)
	}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, func(context.Context) error { fn(); return nil })
}

// newHandler writes to w and, when a log file is configured, to a rotating
// file as well.
func newHandler(w io.Writer, s config.ServerConfig, level slog.Leveler) slog.Handler {
	if s.LogFile != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   s.LogFile,
			MaxSize:    s.LogMaxSizeMB,
			MaxBackups: s.LogMaxBackups,
			MaxAge:     s.LogMaxAgeDays,
			Compress:   true,
		})
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.LogFormat == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// concepts builds the configured catalogue source behind the otter cache. A
// file catalogue is watched and the cache dropped on change. Nil means no
// catalogue is configured.
func (a *app) concepts(ctx context.Context) (catalogue.Source, error) {
	c := a.cfg.Catalogue
	var src catalogue.Source
	switch {
	case c.File != "":
		src = catalogue.FileSource{Path: c.File}
	case c.PostgresDSN != "":
		pg, err := catalogue.NewPostgresSource(ctx, c.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.onClose(pg.Close)
		a.checkers = append(a.checkers, health.Ping("catalogue", pg))
		src = pg
	default:
		return nil, nil
	}

	cached, err := catalogue.NewCached(src, c.CacheTTL)
	if err != nil {
		return nil, err
	}
	a.onClose(cached.Close)

	if c.File != "" {
		go catalogue.Watch(ctx, c.File, c.WatchInterval, cached.Invalidate)
	}
	return cached, nil
}

// serveAdmin starts the admin listener when one is configured. It serves
// Prometheus metrics and the health probes.
func (a *app) serveAdmin() {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.checkers...).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.log.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("admin server failed", "err", err)
		}
	}()
	a.closers = append(a.closers, srv.Shutdown)
}
