package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"loomworks/trawl/pkg/api"
	"loomworks/trawl/pkg/cli"
	"loomworks/trawl/pkg/config"
	"loomworks/trawl/pkg/export"
	"loomworks/trawl/pkg/history"
	"loomworks/trawl/pkg/schedule"
	"loomworks/trawl/pkg/telemetry/logging"
	"loomworks/trawl/pkg/telemetry/metrics"
)

var exportFlags struct {
	project string
	output  string
	daemon  bool
	dryRun  bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export projects to CSV files",
	Long: `Export analytics projects to CSV files.

Each project becomes a directory under the output root, with one CSV
file per experiment and dataset. Entities are exported one at a time;
a failing entity is logged and skipped while the run continues.

Examples:
  # Export every project visible to the API key
  trawl export

  # Export one project by id or name
  trawl export --project my-project

  # Export into a specific directory
  trawl export --output /data/exports

  # Run recurring exports per the configured cron schedule
  trawl export --daemon

  # Validate config without exporting
  trawl export --dry-run`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFlags.project, "project", "p", "", "project id or name (default: all projects)")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "override output root directory")
	exportCmd.Flags().BoolVarP(&exportFlags.daemon, "daemon", "d", false, "keep running and export on the configured cron schedule")
	exportCmd.Flags().BoolVar(&exportFlags.dryRun, "dry-run", false, "validate config without exporting")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigOrDefault(cfgFile)
	if err != nil {
		return cli.NewCommandError("export", err)
	}

	if exportFlags.output != "" {
		cfg.Export.OutputRoot = exportFlags.output
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewCommandError("export", err)
	}

	if exportFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	if cfg.API.BaseURL == "" {
		return cli.NewCommandError("export",
			fmt.Errorf("api.base_url is not configured (set it in %s or TRAWL_API_BASE_URL)", cfgFile))
	}
	if cfg.API.APIKey == "" {
		return cli.NewCommandError("export",
			fmt.Errorf("api.api_key is not configured (set it in %s or TRAWL_API_API_KEY)", cfgFile))
	}

	client := api.NewClient(api.ClientConfig{
		BaseURL:             cfg.API.BaseURL,
		APIKey:              cfg.API.APIKey,
		Timeout:             cfg.API.Timeout,
		PageLimit:           cfg.API.PageLimit,
		MaxIdleConns:        cfg.API.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.API.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.API.IdleConnTimeout,
	})

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.NewStore(&history.Config{
			Path:         cfg.History.Path,
			MaxOpenConns: cfg.History.MaxOpenConns,
			MaxIdleConns: cfg.History.MaxIdleConns,
			WALMode:      cfg.History.WALMode,
			BusyTimeout:  cfg.History.BusyTimeout,
		})
		if err != nil {
			return cli.NewCommandError("export", err)
		}
		defer store.Close()
	}

	// In daemon mode the config file can be reloaded between runs, so
	// each run snapshots the current config and builds its orchestrator
	// from it.
	var cfgMu sync.Mutex
	current := cfg
	currentConfig := func() *config.Config {
		cfgMu.Lock()
		defer cfgMu.Unlock()
		return current
	}
	applyConfig := func(c *config.Config) {
		if exportFlags.output != "" {
			c.Export.OutputRoot = exportFlags.output
		}
		cfgMu.Lock()
		current = c
		cfgMu.Unlock()
	}

	ctx := cli.SetupSignalHandler()

	runOnce := func(ctx context.Context) error {
		cfg := currentConfig()
		orchestrator := export.NewOrchestrator(client, export.OrchestratorConfig{
			OutputRoot:           cfg.Export.OutputRoot,
			SampleSize:           cfg.Export.SampleSize,
			ProactiveDelay:       cfg.Export.ProactiveDelay,
			ThrottleAfterRecords: cfg.Export.ThrottleAfterRecords,
			MaxPages:             cfg.Export.MaxPages,
			Reporter:             cli.NewWaitNotifier(nil),
			Metrics:              collector,
		})

		projects, err := resolveProjects(ctx, client, exportFlags.project)
		if err != nil {
			return err
		}
		for _, project := range projects {
			report, err := orchestrator.ExportProject(ctx, project)
			if report != nil && len(report.Results) > 0 {
				cli.PrintRunReport(os.Stdout, report)
				recordRun(ctx, store, collector, report)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	if !exportFlags.daemon {
		if err := runOnce(ctx); err != nil {
			return cli.NewCommandError("export", err)
		}
		return nil
	}

	return runDaemon(ctx, cfg, collector, runOnce, applyConfig)
}

// runDaemon runs recurring exports until the signal context is
// cancelled, optionally serving metrics and hot-reloading the config
// file.
func runDaemon(ctx context.Context, cfg *config.Config, collector *metrics.Collector, runOnce schedule.RunFunc, applyConfig func(*config.Config)) error {
	if cfg.Schedule.Cron == "" {
		return cli.NewCommandError("export",
			fmt.Errorf("schedule.cron must be configured for --daemon mode"))
	}

	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: cfg.Telemetry.Metrics.ListenAddress, Handler: mux}
		go func() {
			slog.Info("metrics endpoint listening", "address", cfg.Telemetry.Metrics.ListenAddress)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	startScheduler := func(spec string) (*schedule.Scheduler, error) {
		s := schedule.NewScheduler(spec, runOnce)
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}

	scheduler, err := startScheduler(cfg.Schedule.Cron)
	if err != nil {
		return cli.NewCommandError("export", err)
	}

	reloader := &configReloader{
		load:       func() (*config.Config, error) { return config.LoadConfig(cfgFile) },
		apply:      applyConfig,
		start:      startScheduler,
		prev:       cfg,
		scheduler:  scheduler,
		activeCron: cfg.Schedule.Cron,
	}
	defer reloader.stop()

	if next := scheduler.NextRun(); next != nil {
		fmt.Printf("scheduled exports started (%s), next run at %s\n",
			cfg.Schedule.Cron, next.Format(time.RFC3339))
	}

	if cfg.Schedule.WatchConfig {
		watcher, err := config.NewWatcher(cfgFile, nil)
		if err != nil {
			return cli.NewCommandError("export", err)
		}
		defer watcher.Stop()
		go watcher.Watch(ctx, reloader.reload)
	}

	fmt.Println("Press Ctrl+C to stop")
	<-ctx.Done()
	fmt.Println("\nshutting down...")
	return nil
}

// configReloader applies config file changes while the daemon runs.
// Export tuning takes effect on the next run via apply; a cron change
// replaces the running scheduler. Settings bound at startup (api,
// history, telemetry) need a restart.
type configReloader struct {
	load  func() (*config.Config, error)
	apply func(*config.Config)
	start func(spec string) (*schedule.Scheduler, error)

	mu         sync.Mutex
	prev       *config.Config
	scheduler  *schedule.Scheduler
	activeCron string
}

// reload loads and applies the config file. A load failure leaves the
// previous config and scheduler in place.
func (r *configReloader) reload() error {
	cfg, err := r.load()
	if err != nil {
		return err
	}
	r.apply(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.API != r.prev.API || cfg.History != r.prev.History || cfg.Telemetry != r.prev.Telemetry {
		slog.Warn("api, history, and telemetry settings changed, restart to apply")
	}
	r.prev = cfg

	switch newCron := cfg.Schedule.Cron; {
	case newCron == r.activeCron:
	case newCron == "":
		slog.Warn("schedule.cron removed from config, keeping current schedule",
			"cron", r.activeCron)
	default:
		// Stop first so runs never overlap across the swap; the new
		// spec already passed validation during load.
		r.scheduler.Stop()
		next, err := r.start(newCron)
		if err != nil {
			return fmt.Errorf("failed to apply schedule %q: %w", newCron, err)
		}
		r.scheduler = next
		r.activeCron = newCron
		if at := next.NextRun(); at != nil {
			slog.Info("schedule updated", "cron", newCron, "next_run", at.Format(time.RFC3339))
		}
	}
	return nil
}

// stop stops whichever scheduler is current.
func (r *configReloader) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.Stop()
}

// resolveProjects turns the --project selector into concrete projects.
// An empty selector means every project visible to the API key.
func resolveProjects(ctx context.Context, client *api.Client, selector string) ([]api.Project, error) {
	projects, err := client.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	if selector == "" {
		return projects, nil
	}

	if match := matchProject(projects, selector); match != nil {
		return []api.Project{*match}, nil
	}
	return nil, fmt.Errorf("project %q not found", selector)
}

// matchProject finds a project by exact id or case-insensitive name.
func matchProject(projects []api.Project, selector string) *api.Project {
	for i := range projects {
		if projects[i].ID == selector || strings.EqualFold(projects[i].Name, selector) {
			return &projects[i]
		}
	}
	return nil
}

// recordRun persists the run and counts its outcome.
func recordRun(ctx context.Context, store *history.Store, collector *metrics.Collector, report *export.RunReport) {
	status := "success"
	if report.Failed() > 0 {
		status = "partial"
	}
	collector.RunCompleted(status)

	if store == nil {
		return
	}
	if err := store.SaveRun(ctx, report); err != nil {
		slog.Error("failed to record run history", "run_id", report.RunID, "error", err)
	}
}
