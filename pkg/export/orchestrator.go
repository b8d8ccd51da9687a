package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"loomworks/trawl/pkg/api"
)

// EntityAPI is the slice of the API client the orchestrator needs.
// *api.Client satisfies it.
type EntityAPI interface {
	ListEntities(ctx context.Context, kind api.EntityKind, projectID string) ([]api.Entity, error)
	FetchPage(ctx context.Context, kind api.EntityKind, entityID, cursor string) (api.Page, error)
}

// OrchestratorConfig contains configuration for an export run.
type OrchestratorConfig struct {
	// OutputRoot is the directory export trees are created under.
	OutputRoot string

	// SampleSize is the writer's header inference window.
	// Default: 1000
	SampleSize int

	// ProactiveDelay, ThrottleAfterRecords, and MaxPages tune
	// pagination; see PagerConfig.
	ProactiveDelay       time.Duration
	ThrottleAfterRecords int
	MaxPages             int

	// Reporter receives long-wait notices from retries. Optional.
	Reporter WaitReporter

	// Metrics receives pipeline events. Optional.
	Metrics Metrics
}

// EntityResult records the outcome of one entity's export.
type EntityResult struct {
	// Kind is the entity's collection.
	Kind api.EntityKind

	// Entity identifies what was exported.
	Entity api.Entity

	// File is the output path (empty when no file was written).
	File string

	// Result is the writer's summary. Zero-valued when Err is set.
	Result Result

	// Err is the failure that ended this entity's export, nil on
	// success.
	Err error
}

// Failed reports whether this entity's export failed.
func (r EntityResult) Failed() bool {
	return r.Err != nil
}

// RunReport summarizes one export run across all entities.
type RunReport struct {
	// RunID uniquely identifies the run.
	RunID string

	// ProjectID and ProjectName identify the exported project.
	ProjectID   string
	ProjectName string

	// OutputDir is the project's export directory (empty when the
	// project had nothing to export).
	OutputDir string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Results holds one entry per entity, in export order.
	Results []EntityResult
}

// Succeeded returns the number of entities exported without error.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if !res.Failed() {
			n++
		}
	}
	return n
}

// Failed returns the number of entities whose export failed.
func (r *RunReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// TotalRecords returns the number of records written across all
// successful entities.
func (r *RunReport) TotalRecords() int {
	n := 0
	for _, res := range r.Results {
		if !res.Failed() {
			n += res.Result.RecordCount
		}
	}
	return n
}

// Orchestrator sequences one export run: it enumerates a project's
// experiments and datasets, creates the destination tree, and drives
// one streaming CSV export per entity. Entities are processed strictly
// one at a time, and one entity's failure never aborts the rest.
type Orchestrator struct {
	client      EntityAPI
	config      OrchestratorConfig
	listRetrier Retrier
	pageRetrier Retrier
	writer      *StreamWriter
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator over client.
func NewOrchestrator(client EntityAPI, config OrchestratorConfig) *Orchestrator {
	listRetrier := NewRetrier()
	listRetrier.Reporter = config.Reporter
	listRetrier.Metrics = config.Metrics

	pageRetrier := NewPaginationRetrier()
	pageRetrier.Reporter = config.Reporter
	pageRetrier.Metrics = config.Metrics

	writer := NewStreamWriter()
	if config.SampleSize > 0 {
		writer.SampleSize = config.SampleSize
	}

	return &Orchestrator{
		client:      client,
		config:      config,
		listRetrier: listRetrier,
		pageRetrier: pageRetrier,
		writer:      writer,
		logger:      slog.Default().With("component", "export.orchestrator"),
	}
}

// ExportProject exports every experiment and dataset in the project.
// Listing failures abort the run; per-entity export failures are
// recorded in the report and the run continues. The report is returned
// even alongside an error so callers can see partial progress.
func (o *Orchestrator) ExportProject(ctx context.Context, project api.Project) (*RunReport, error) {
	report := &RunReport{
		RunID:       uuid.NewString(),
		ProjectID:   project.ID,
		ProjectName: project.Name,
		StartedAt:   time.Now(),
	}
	defer func() { report.FinishedAt = time.Now() }()

	experiments, err := o.listEntities(ctx, api.KindExperiment, project.ID)
	if err != nil {
		return report, fmt.Errorf("failed to list experiments: %w", err)
	}
	datasets, err := o.listEntities(ctx, api.KindDataset, project.ID)
	if err != nil {
		return report, fmt.Errorf("failed to list datasets: %w", err)
	}

	if len(experiments) == 0 && len(datasets) == 0 {
		o.logger.Info("project has nothing to export",
			"project", project.Name,
			"project_id", project.ID,
		)
		return report, nil
	}

	projectDir := filepath.Join(o.config.OutputRoot, SafeDirName(project.Name, project.ID))
	report.OutputDir = projectDir

	for _, kind := range []api.EntityKind{api.KindExperiment, api.KindDataset} {
		// MkdirAll is idempotent: pre-existing directories are fine.
		if err := os.MkdirAll(filepath.Join(projectDir, kind.Plural()), 0o755); err != nil {
			return report, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	o.logger.Info("starting export run",
		"run_id", report.RunID,
		"project", project.Name,
		"experiments", len(experiments),
		"datasets", len(datasets),
	)

	if err := o.exportEntities(ctx, report, api.KindExperiment, experiments, projectDir); err != nil {
		return report, err
	}
	if err := o.exportEntities(ctx, report, api.KindDataset, datasets, projectDir); err != nil {
		return report, err
	}

	o.logger.Info("export run finished",
		"run_id", report.RunID,
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"records", report.TotalRecords(),
	)

	return report, nil
}

// listEntities lists one kind through the default retrier.
func (o *Orchestrator) listEntities(ctx context.Context, kind api.EntityKind, projectID string) ([]api.Entity, error) {
	var entities []api.Entity
	err := o.listRetrier.Do(ctx, func(ctx context.Context) error {
		var listErr error
		entities, listErr = o.client.ListEntities(ctx, kind, projectID)
		return listErr
	})
	return entities, err
}

// exportEntities exports one kind's entities sequentially, isolating
// per-entity failures. Only context cancellation stops the loop early.
func (o *Orchestrator) exportEntities(ctx context.Context, report *RunReport, kind api.EntityKind, entities []api.Entity, projectDir string) error {
	kindDir := filepath.Join(projectDir, kind.Plural())

	for _, entity := range entities {
		path := filepath.Join(kindDir, SafeFileName(entity.Name, entity.ID)+".csv")
		result, err := o.exportOne(ctx, kind, entity, path)

		entry := EntityResult{Kind: kind, Entity: entity, Result: result, Err: err}
		if err == nil && result.RecordCount > 0 {
			entry.File = path
		}
		report.Results = append(report.Results, entry)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			o.logger.Error("entity export failed, continuing with remaining entities",
				"kind", kind,
				"entity", entity.Name,
				"entity_id", entity.ID,
				"error", err,
			)
			if o.config.Metrics != nil {
				o.config.Metrics.EntityFailed(kind.String())
			}
			continue
		}

		if o.config.Metrics != nil {
			o.config.Metrics.RecordsExported(kind.String(), result.RecordCount)
		}
		o.logger.Info("entity exported",
			"kind", kind,
			"entity", entity.Name,
			"records", result.RecordCount,
			"truncated", result.HadTruncation,
			"schema_drift", result.SchemaDriftDetected,
		)
	}

	return nil
}

// exportOne streams a single entity's records to path.
func (o *Orchestrator) exportOne(ctx context.Context, kind api.EntityKind, entity api.Entity, path string) (Result, error) {
	fetch := func(ctx context.Context, cursor string) (api.Page, error) {
		return o.client.FetchPage(ctx, kind, entity.ID, cursor)
	}

	pager := NewPagerWithRetrier(fetch, PagerConfig{
		ProactiveDelay:       o.config.ProactiveDelay,
		ThrottleAfterRecords: o.config.ThrottleAfterRecords,
		MaxPages:             o.config.MaxPages,
		Kind:                 kind.String(),
	}, o.pageRetrier)

	return o.writer.StreamToFile(ctx, pager, path)
}
