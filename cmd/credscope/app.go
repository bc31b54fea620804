package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/credscope/credscope/internal/bootstrap"
	"github.com/credscope/credscope/internal/logging"
	"github.com/credscope/credscope/internal/pipeline"
	"github.com/credscope/credscope/internal/store"
	"github.com/credscope/credscope/pkg/config"
	"github.com/credscope/credscope/pkg/scoring"
)

// app is what a command needs: configuration, the store and the pipeline.
type app struct {
	cfg    *config.Config
	store  *store.Store
	svc    *pipeline.Service
	logger *slog.Logger
}

// loadConfig resolves the config file, applies the environment and the
// global flag overrides.
func loadConfig(g *globalOpts) (*config.Config, error) {
	path := g.configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(wd)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if g.dbURL != "" {
		cfg.Database.URL = g.dbURL
		cfg.Database.Driver = bootstrap.DriverFor(g.dbURL)
	}
	// the CLI stays quiet unless asked otherwise
	cfg.Log.Level = firstNonEmpty(g.logLevel, os.Getenv("CREDSCOPE_LOG_LEVEL"), "warn")
	return cfg, nil
}

// openStore loads configuration and opens the database without building the
// scoring pipeline.
func openStore(g *globalOpts) (*app, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	logger := logging.Init("credscope", cfg.Log.Level, cfg.Log.JSON)
	st, err := bootstrap.OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: st, logger: logger}, nil
}

// openApp opens the store and builds the scoring pipeline on top of it.
func openApp(ctx context.Context, g *globalOpts) (*app, error) {
	a, err := openStore(g)
	if err != nil {
		return nil, err
	}
	lookups := bootstrap.Lookups(ctx, a.cfg, a.store, nil, a.logger)
	a.svc, err = pipeline.NewService(a.cfg.Tree(), lookups, a.store,
		pipeline.WithEngineOptions(
			scoring.WithTimeout(a.cfg.Timeout()),
			scoring.WithLogger(a.logger),
		),
		pipeline.WithLogger(a.logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid calculation tree: %w", err)
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.DB().Close()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
