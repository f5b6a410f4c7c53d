// Package app assembles the engine, dispatcher and generators for one workspace.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"growline/internal/config"
	"growline/internal/db"
	"growline/internal/engine"
	"growline/internal/events"
	"growline/internal/generators"
	"growline/internal/growth"
	"growline/internal/metrics"
	"growline/internal/migrate"
	"growline/internal/server"
)

// Options locate the workspace and override config values.
type Options struct {
	Workspace  string
	ConfigPath string
	LogLevel   string
	LogOutput  io.Writer
}

// App is a wired workspace. Close releases the database.
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Engine     engine.Engine
	Dispatcher *events.Dispatcher
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Open loads config, migrates the database and registers every event handler.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := LoadConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(out, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	reg, m := metrics.NewRegistry()
	src, err := GrowthSource(cfg, m)
	if err != nil {
		conn.Close()
		return nil, err
	}
	d := events.NewDispatcher(
		events.WithLogger(logger),
		events.WithMetrics(m),
		events.WithConcurrency(cfg.Dispatch.Concurrency),
	)
	eng := engine.New(conn, cfg, d)
	eng.Logger = logger
	eng.Metrics = m

	generators.Register(d, generators.Deps{
		Tasks:    eng,
		WorkLogs: eng,
		Cycles:   eng,
		Growth:   src,
		Defaults: cfg.Defaults,
		Logger:   logger,
		Now:      eng.Now,
	})
	if n := server.RegisterWebhooks(d, cfg.Webhooks, logger); n > 0 {
		logger.Debug("webhooks registered", "count", n)
	}

	return &App{
		Config:     cfg,
		DB:         conn,
		Engine:     eng,
		Dispatcher: d,
		Registry:   reg,
		Metrics:    m,
		Logger:     logger,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// LoadConfig reads path when given, else growline.yml in the workspace.
// A relative catalog path is resolved against the directory holding the config.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if path == "" {
		return config.Load(workspace)
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.Growth.Catalog != "" && !filepath.IsAbs(cfg.Growth.Catalog) {
		cfg.Growth.Catalog = filepath.Join(filepath.Dir(path), cfg.Growth.Catalog)
	}
	return cfg, nil
}

// NewLogger builds a text or json slog logger at the named level.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log format %q must be text or json", format)
}

// GrowthSource picks the catalog file or the HTTP endpoint, adds the shared
// cache and memoizes lookups per command. With neither configured every
// lookup reports not found.
func GrowthSource(cfg *config.Config, m *metrics.Metrics) (growth.Source, error) {
	var src growth.Source
	switch {
	case cfg.Growth.Catalog != "":
		c, err := growth.LoadCatalog(cfg.Growth.Catalog)
		if err != nil {
			return nil, fmt.Errorf("load growth catalog: %w", err)
		}
		src = c
	case cfg.Growth.Endpoint != "":
		src = growth.NewClient(cfg.Growth.Endpoint, cfg.Growth.Timeout)
	default:
		src = growth.NewCatalog()
	}
	return growth.Scoped{Source: growth.NewCache(src, cfg.Growth.CacheSize, cfg.Growth.CacheTTL, m)}, nil
}
