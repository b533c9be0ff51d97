package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/config"
	"github.com/kalambet/partsbin/internal/ideas"
	"github.com/kalambet/partsbin/internal/inventory"
	"github.com/kalambet/partsbin/internal/logging"
	"github.com/kalambet/partsbin/internal/settings"
	"github.com/kalambet/partsbin/internal/storage"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

// app is the wired application for one command invocation.
type app struct {
	cfg       config.Config
	log       *logging.Logger
	store     *storage.SettingsStore
	registry  *catalog.Registry
	manager   *inventory.Manager
	settings  *settings.Service
	generator ideas.Generator
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logging.SetDefault(log)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	store, err := storage.OpenSettings(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	reg := catalog.NewRegistry(store)
	if err := reg.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading categories: %w", err)
	}

	mgr := inventory.NewManager(cfg.Storage.DataDir, store, reg, log)
	if err := mgr.Open(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("opening inventory: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: reg,
		manager:  mgr,
		settings: settings.NewService(store),
	}, nil
}

func (a *app) Close() error {
	if c, ok := a.generator.(io.Closer); ok {
		c.Close()
	}
	mgrErr := a.manager.Close()
	storeErr := a.store.Close()
	a.log.Sync()
	if mgrErr != nil {
		return mgrErr
	}
	return storeErr
}

// ideaOptions merges the user settings over the config file. Settings win.
func (a *app) ideaOptions(ctx context.Context) ideas.Options {
	opts := ideas.Options{
		Provider:      a.cfg.LLM.Provider,
		APIKey:        a.cfg.LLM.APIKey,
		Model:         a.cfg.LLM.Model,
		BaseURL:       a.cfg.LLM.BaseURL,
		Timeout:       a.cfg.LLM.TimeoutDuration(),
		RatePerMinute: a.cfg.LLM.RatePerMinute,
	}
	if v, err := a.settings.Get(ctx, settings.KeyAPIKey); err == nil && v != "" {
		opts.APIKey = v
	}
	if v, err := a.settings.Get(ctx, settings.KeyProvider); err == nil && v != "" {
		opts.Provider = v
	}
	if v, err := a.settings.Get(ctx, settings.KeyModel); err == nil && v != "" {
		opts.Model = v
	}
	return opts
}

// newGenerator is replaced in tests.
var newGenerator = ideas.NewGenerator

// ideaService builds the idea service. A missing key is reported when ideas are requested.
func (a *app) ideaService(ctx context.Context) *ideas.Service {
	opts := a.ideaOptions(ctx)
	gen, err := newGenerator(ctx, opts)
	if err != nil {
		a.log.Debugw("ideas unavailable", "error", err)
	}
	a.generator = gen
	return ideas.NewService(gen, err, a.registry, opts, a.log)
}

// withApp opens the application, runs fn and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			printWarning("closing storage: %v", err)
		}
	}()
	return fn(ctx, a)
}

// withService is withApp for commands that only need the active inventory.
func withService(cmd *cobra.Command, fn func(ctx context.Context, a *app, svc *inventory.Service) error) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.manager.Do(ctx, func(svc *inventory.Service) error {
			return fn(ctx, a, svc)
		})
	})
}
