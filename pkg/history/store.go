// Package history persists export run outcomes to SQLite so past runs
// can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"loomworks/trawl/pkg/export"
)

// Config contains configuration for the history store.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default history store configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "data/trawl.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// StoreError represents a failure inside the history store.
type StoreError struct {
	Operation string // Operation that failed ("save_run", "recent_runs", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("history store error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

func newStoreError(operation string, cause error) *StoreError {
	return &StoreError{Operation: operation, Cause: cause}
}

// Run is one recorded export run.
type Run struct {
	ID             string
	ProjectID      string
	ProjectName    string
	OutputDir      string
	StartedAt      time.Time
	FinishedAt     time.Time
	EntitiesTotal  int
	EntitiesFailed int
	RecordsTotal   int
}

// EntityOutcome is one entity's recorded outcome within a run.
type EntityOutcome struct {
	RunID         string
	Kind          string
	EntityID      string
	EntityName    string
	File          string
	RecordCount   int
	HadTruncation bool
	SchemaDrift   bool
	DriftedFields []string
	Error         string
}

// Store is the SQLite-backed run history store.
type Store struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger
}

// NewStore opens (creating if necessary) the history database at
// config.Path and initializes the schema.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	logger := slog.Default().With("component", "history.store")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStoreError("open", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, newStoreError("open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("history store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the schema and enables WAL mode.
func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStoreError("enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return newStoreError("set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return newStoreError("create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return newStoreError("insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return newStoreError("get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStoreError("schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// SaveRun persists a run report and all its entity outcomes in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, report *export.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newStoreError("save_run", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, project_id, project_name, output_dir,
			started_at, finished_at,
			entities_total, entities_failed, records_total
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID, report.ProjectID, report.ProjectName, report.OutputDir,
		report.StartedAt, report.FinishedAt,
		len(report.Results), report.Failed(), report.TotalRecords(),
	)
	if err != nil {
		return newStoreError("save_run", err)
	}

	for _, res := range report.Results {
		driftedFields, _ := json.Marshal(res.Result.DriftedFields)

		var errorVal interface{}
		if res.Err != nil {
			errorVal = res.Err.Error()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_entities (
				run_id, kind, entity_id, entity_name,
				file, record_count, had_truncation, schema_drift, drifted_fields,
				error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID, res.Kind.String(), res.Entity.ID, res.Entity.Name,
			res.File, res.Result.RecordCount, res.Result.HadTruncation,
			res.Result.SchemaDriftDetected, string(driftedFields),
			errorVal,
		)
		if err != nil {
			return newStoreError("save_run", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return newStoreError("save_run", err)
	}

	s.logger.Debug("run saved",
		"run_id", report.RunID,
		"entities", len(report.Results),
	)
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, project_name, output_dir,
		       started_at, finished_at,
		       entities_total, entities_failed, records_total
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, newStoreError("recent_runs", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		err := rows.Scan(
			&run.ID, &run.ProjectID, &run.ProjectName, &run.OutputDir,
			&run.StartedAt, &run.FinishedAt,
			&run.EntitiesTotal, &run.EntitiesFailed, &run.RecordsTotal,
		)
		if err != nil {
			return nil, newStoreError("scan", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("recent_runs", err)
	}

	return runs, nil
}

// RunEntities returns the entity outcomes recorded for one run.
func (s *Store) RunEntities(ctx context.Context, runID string) ([]EntityOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, entity_id, entity_name,
		       file, record_count, had_truncation, schema_drift, drifted_fields,
		       error
		FROM run_entities
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, newStoreError("run_entities", err)
	}
	defer rows.Close()

	outcomes := []EntityOutcome{}
	for rows.Next() {
		var o EntityOutcome
		var driftedFields string
		var errorVal sql.NullString
		err := rows.Scan(
			&o.RunID, &o.Kind, &o.EntityID, &o.EntityName,
			&o.File, &o.RecordCount, &o.HadTruncation, &o.SchemaDrift, &driftedFields,
			&errorVal,
		)
		if err != nil {
			return nil, newStoreError("scan", err)
		}
		if driftedFields != "" {
			if err := json.Unmarshal([]byte(driftedFields), &o.DriftedFields); err != nil {
				return nil, newStoreError("scan",
					fmt.Errorf("decode drifted_fields for entity %s: %w", o.EntityID, err))
			}
		}
		if errorVal.Valid {
			o.Error = errorVal.String
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("run_entities", err)
	}

	return outcomes, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return newStoreError("close", err)
	}
	s.logger.Info("history store closed")
	return nil
}
