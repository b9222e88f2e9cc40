package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/studyplanner/core/internal/adapters/repository"
	"github.com/studyplanner/core/internal/application/services"
	"github.com/studyplanner/core/internal/domain/planner"
	"github.com/studyplanner/core/internal/infrastructure/config"
	"github.com/studyplanner/core/internal/infrastructure/datastore"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/infrastructure/server"
	"github.com/studyplanner/core/internal/ports"
)

// Build information, set with -ldflags at release time
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "development"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the StudyPlanner API server",
		Long:  "Start the StudyPlanner API server backed by the JSON document store in the data directory",
		Run: func(cmd *cobra.Command, args []string) {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			runServer(dataDir)
		},
	}

	cmd.Flags().String("data-dir", "", "Directory holding the collection files (overrides DATA_DIR)")
	return cmd
}

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute a study plan and print it as JSON",
		Long:  "Compute a study plan from the stored tasks, or from a JSON task list with --tasks-file, and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd)
		},
	}

	cmd.Flags().Float64("daily-hours", 0, "Daily study capacity in hours (default from config)")
	cmd.Flags().Int("window-days", 0, "Number of days to plan (default from config)")
	cmd.Flags().String("data-dir", "", "Directory holding the collection files (overrides DATA_DIR)")
	cmd.Flags().String("tasks-file", "", "Plan the tasks in this JSON file instead of the store")
	return cmd
}

// NewCollectionsCommand creates the collections command with subcommands
func NewCollectionsCommand() *cobra.Command {
	collectionsCmd := &cobra.Command{
		Use:   "collections",
		Short: "Inspect the document store",
	}
	collectionsCmd.PersistentFlags().String("data-dir", "", "Directory holding the collection files (overrides DATA_DIR)")

	collectionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collections and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, logger.NewNop())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range store.Collections() {
				doc, err := store.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-16s %8d bytes\n", name, len(doc))
			}
			return nil
		},
	})

	collectionsCmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print a collection document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, logger.NewNop())
			if err != nil {
				return err
			}

			doc, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return nil
		},
	})

	return collectionsCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print StudyPlanner version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "StudyPlanner v%s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}

// loadConfig loads the configuration and applies the --data-dir override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Store.DataDir = dir
	}
	return cfg, nil
}

func openStore(cmd *cobra.Command, log *logger.Logger) (*datastore.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return datastore.Open(cmd.Context(), datastore.Options{
		DataDir:      cfg.Store.DataDir,
		Collections:  cfg.Store.Collections,
		WriteTimeout: cfg.Store.WriteTimeout,
		Logger:       log,
	})
}

func runPlan(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req := ports.StudyPlanRequest{}
	if cmd.Flags().Changed("daily-hours") {
		hours, _ := cmd.Flags().GetFloat64("daily-hours")
		req.DailyHours = &hours
	}
	if cmd.Flags().Changed("window-days") {
		days, _ := cmd.Flags().GetInt("window-days")
		req.WindowDays = &days
	}

	var plan *planner.Plan
	if file, _ := cmd.Flags().GetString("tasks-file"); file != "" {
		plan, err = planFromFile(file, cfg.Planner, req, cmd.ErrOrStderr())
	} else {
		plan, err = planFromStore(cmd, cfg, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

func planFromStore(cmd *cobra.Command, cfg *config.Config, req ports.StudyPlanRequest) (*planner.Plan, error) {
	log := logger.NewNop()
	store, err := datastore.Open(cmd.Context(), datastore.Options{
		DataDir:      cfg.Store.DataDir,
		Collections:  cfg.Store.Collections,
		WriteTimeout: cfg.Store.WriteTimeout,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	svc := services.NewStudyPlanService(repository.NewTaskRepository(store, log), cfg.Planner, services.RealClock{}, log)
	return svc.ComputePlan(cmd.Context(), req)
}

func planFromFile(path string, defaults config.PlannerConfig, req ports.StudyPlanRequest, warn io.Writer) (*planner.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("tasks file must hold a JSON array: %w", err)
	}
	tasks, skipped := planner.DecodeTasks(raw)
	if skipped > 0 {
		fmt.Fprintf(warn, "skipped %d malformed task(s)\n", skipped)
	}

	opts := planner.Options{
		DailyCapacityHours: defaults.DefaultDailyHours,
		WindowDays:         defaults.DefaultWindowDays,
		Now:                time.Now().UTC(),
	}
	if req.DailyHours != nil {
		opts.DailyCapacityHours = *req.DailyHours
	}
	if req.WindowDays != nil {
		opts.WindowDays = *req.WindowDays
	}
	if defaults.MaxWindowDays > 0 && opts.WindowDays > defaults.MaxWindowDays {
		return nil, fmt.Errorf("window days must be at most %d", defaults.MaxWindowDays)
	}

	plan := planner.Compute(tasks, opts)
	return &plan, nil
}

func runServer(dataDir string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dataDir != "" {
		cfg.Store.DataDir = dataDir
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	var metrics *datastore.Metrics
	if cfg.Metrics.Enabled {
		metrics = datastore.NewMetrics(registry)
	}

	store, err := datastore.Open(ctx, datastore.Options{
		DataDir:      cfg.Store.DataDir,
		Collections:  cfg.Store.Collections,
		WriteTimeout: cfg.Store.WriteTimeout,
		Logger:       appLogger,
		Metrics:      metrics,
	})
	if err != nil {
		appLogger.Fatalw("Failed to open document store", "error", err, "data_dir", cfg.Store.DataDir)
	}

	srv, err := server.New(cfg, store, appLogger, server.Options{Registry: registry})
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	if cfg.Store.WatchExternal {
		watcher, err := datastore.NewWatcher(store, appLogger, srv.Hub().CollectionReloaded)
		if err != nil {
			appLogger.Fatalw("Failed to create data directory watcher", "error", err)
		}
		if err := watcher.Start(); err != nil {
			appLogger.Fatalw("Failed to start data directory watcher", "error", err)
		}
		defer watcher.Stop()
	}

	appLogger.Infow("Starting StudyPlanner API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"collections", store.Collections(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Fatalw("Server failed", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
	}
}
