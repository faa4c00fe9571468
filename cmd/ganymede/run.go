package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/engine"
	"mercator-hq/ganymede/pkg/guard"
	"mercator-hq/ganymede/pkg/policy/source"
	"mercator-hq/ganymede/pkg/store"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the enforcement engine as a long-lived process",
	Long: `Run the enforcement engine with the specified configuration.

The process opens the account store, syncs policy documents from the
configured directory, and keeps the policy watcher and audit retention
scheduler running until interrupted.

Examples:
  # Run with default config
  ganymede run

  # Run with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Validate config without starting
  ganymede run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Account store.
	var st store.Store
	switch cfg.Store.Backend {
	case "sqlite":
		st, err = store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open account store: %w", err)
		}
	default:
		st = store.NewMemoryStore()
	}
	defer st.Close()
	logger.Info("account store ready", "backend", cfg.Store.Backend)

	// Decision log.
	var auditStorage audit.Storage
	if cfg.Audit.Enabled {
		switch cfg.Audit.Backend {
		case "sqlite":
			sqliteCfg := audit.DefaultSQLiteConfig()
			sqliteCfg.Path = cfg.Audit.Path
			auditStorage, err = audit.NewSQLiteStorage(sqliteCfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open audit storage: %w", err)
			}
		default:
			auditStorage = audit.NewMemoryStorage()
		}
		defer auditStorage.Close()
		logger.Info("audit storage ready", "backend", cfg.Audit.Backend)

		if cfg.Audit.PruneSchedule != "" {
			pruner := audit.NewPruner(auditStorage, audit.RetentionConfig{
				RetentionDays: cfg.Audit.RetentionDays,
				PruneSchedule: cfg.Audit.PruneSchedule,
			}, logger)
			scheduler := audit.NewScheduler(pruner)
			if err := scheduler.Start(ctx); err != nil {
				return fmt.Errorf("failed to start retention scheduler: %w", err)
			}
			defer scheduler.Stop()
		}
	}

	eng := engine.New(st, engine.Options{
		Logger:  logger,
		Audit:   auditStorage,
		Metrics: guard.NewMetrics(),
	})

	// Policy document source.
	if cfg.Policy.Dir != "" {
		registry := source.NewRegistry(source.NewFileSource(cfg.Policy.Dir), eng, logger)
		applied, err := registry.Sync(ctx)
		if err != nil {
			return fmt.Errorf("failed to sync policy documents: %w", err)
		}
		logger.Info("policy documents synced", "dir", cfg.Policy.Dir, "applied", applied)

		if cfg.Policy.Watch {
			watcher, err := source.NewWatcher(registry, cfg.Policy.DebounceInterval, logger)
			if err != nil {
				return fmt.Errorf("failed to create policy watcher: %w", err)
			}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("policy watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	fmt.Println("engine running, press Ctrl+C to stop")
	<-ctx.Done()
	fmt.Println("shutting down")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
