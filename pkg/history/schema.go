package history

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the run history schema.
const Schema = `
-- Export runs
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,

    project_id TEXT NOT NULL,
    project_name TEXT NOT NULL,
    output_dir TEXT NOT NULL,

    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,

    entities_total INTEGER NOT NULL,
    entities_failed INTEGER NOT NULL,
    records_total INTEGER NOT NULL
);

-- Per-entity outcomes within a run
CREATE TABLE IF NOT EXISTS run_entities (
    run_id TEXT NOT NULL REFERENCES runs(id),
    kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    entity_name TEXT NOT NULL,

    file TEXT,
    record_count INTEGER NOT NULL,
    had_truncation BOOLEAN NOT NULL,
    schema_drift BOOLEAN NOT NULL,
    drifted_fields TEXT,

    error TEXT
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_project_id ON runs(project_id);
CREATE INDEX IF NOT EXISTS idx_run_entities_run_id ON run_entities(run_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
