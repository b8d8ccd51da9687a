package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"loomworks/trawl/pkg/cli"
	"loomworks/trawl/pkg/config"
	"loomworks/trawl/pkg/history"
	"loomworks/trawl/pkg/telemetry/logging"
)

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Inspect past export runs",
	Long: `Inspect past export runs recorded in the history database.

Without arguments, lists recent runs. With a run id, shows the
per-entity outcomes of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigOrDefault(cfgFile)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewCommandError("history", err)
	}

	store, err := history.NewStore(&history.Config{
		Path:         cfg.History.Path,
		MaxOpenConns: cfg.History.MaxOpenConns,
		MaxIdleConns: cfg.History.MaxIdleConns,
		WALMode:      cfg.History.WALMode,
		BusyTimeout:  cfg.History.BusyTimeout,
	})
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer store.Close()

	ctx := cli.SetupSignalHandler()

	if len(args) == 1 {
		return showRunEntities(ctx, store, args[0])
	}
	return listRuns(ctx, store)
}

func listRuns(ctx context.Context, store *history.Store) error {
	runs, err := store.RecentRuns(ctx, historyFlags.limit)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPROJECT\tSTARTED\tDURATION\tENTITIES\tFAILED\tRECORDS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.ProjectName,
			run.StartedAt.Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			run.EntitiesTotal,
			run.EntitiesFailed,
			run.RecordsTotal,
		)
	}
	return w.Flush()
}

func showRunEntities(ctx context.Context, store *history.Store, runID string) error {
	outcomes, err := store.RunEntities(ctx, runID)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	if len(outcomes) == 0 {
		fmt.Printf("no entities recorded for run %s\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tENTITY\tRECORDS\tFILE\tSTATUS")
	for _, o := range outcomes {
		status := "ok"
		if o.Error != "" {
			status = "failed: " + o.Error
		} else if o.SchemaDrift {
			status = fmt.Sprintf("ok (drift in %d fields)", len(o.DriftedFields))
		}
		file := o.File
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", o.Kind, o.EntityName, o.RecordCount, file, status)
	}
	return w.Flush()
}
