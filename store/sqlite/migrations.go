package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Beacon store (SQLite).
var Migrations = migrate.NewGroup("beacon")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_beacon_endpoints",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_endpoints (
    id                    TEXT PRIMARY KEY,
    url                   TEXT NOT NULL,
    description           TEXT NOT NULL DEFAULT '',
    method                TEXT NOT NULL DEFAULT 'POST',
    secret                TEXT NOT NULL DEFAULT '',
    event_types           TEXT NOT NULL DEFAULT '[]',
    filters               TEXT NOT NULL DEFAULT '{}',
    headers               TEXT NOT NULL DEFAULT '{}',
    timeout_ms            INTEGER NOT NULL DEFAULT 0,
    max_attempts          INTEGER NOT NULL DEFAULT 0,
    backoff_base_ms       INTEGER NOT NULL DEFAULT 0,
    rate_limit_per_minute INTEGER NOT NULL DEFAULT 0,
    active                INTEGER NOT NULL DEFAULT 1,
    total_deliveries      INTEGER NOT NULL DEFAULT 0,
    successful_deliveries INTEGER NOT NULL DEFAULT 0,
    failed_deliveries     INTEGER NOT NULL DEFAULT 0,
    last_attempt_at       TEXT,
    last_success_at       TEXT,
    metadata              TEXT NOT NULL DEFAULT '{}',
    created_at            TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at            TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_beacon_endpoints_active ON beacon_endpoints (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS beacon_endpoints`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_events",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_events (
    id              TEXT PRIMARY KEY,
    type            TEXT NOT NULL,
    source_type     TEXT NOT NULL DEFAULT '',
    source_id       TEXT NOT NULL DEFAULT '',
    data            TEXT NOT NULL DEFAULT '{}',
    metadata        TEXT NOT NULL DEFAULT '{}',
    context         TEXT NOT NULL DEFAULT '{}',
    idempotency_key TEXT NOT NULL DEFAULT '',
    occurred_at     TEXT NOT NULL,
    processed       INTEGER NOT NULL DEFAULT 0,
    processed_at    TEXT,
    delivery_count  INTEGER NOT NULL DEFAULT 0,
    success_count   INTEGER NOT NULL DEFAULT 0,
    failure_count   INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_beacon_events_type ON beacon_events (type);
CREATE INDEX IF NOT EXISTS idx_beacon_events_created ON beacon_events (created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_beacon_events_idempotency ON beacon_events (idempotency_key) WHERE idempotency_key != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS beacon_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_deliveries",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_deliveries (
    id               TEXT PRIMARY KEY,
    event_id         TEXT NOT NULL,
    event_type       TEXT NOT NULL DEFAULT '',
    endpoint_id      TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'pending',
    method           TEXT NOT NULL DEFAULT 'POST',
    url              TEXT NOT NULL DEFAULT '',
    request_headers  TEXT NOT NULL DEFAULT '{}',
    request_body     TEXT NOT NULL DEFAULT 'null',
    response_status  INTEGER NOT NULL DEFAULT 0,
    response_headers TEXT NOT NULL DEFAULT '{}',
    response_body    TEXT NOT NULL DEFAULT '',
    latency_ms       INTEGER NOT NULL DEFAULT 0,
    attempt_number   INTEGER NOT NULL DEFAULT 0,
    max_attempts     INTEGER NOT NULL DEFAULT 0,
    next_retry_at    TEXT,
    last_attempt_at  TEXT,
    delivered_at     TEXT,
    error            TEXT NOT NULL DEFAULT '',
    error_kind       TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_beacon_deliveries_retry ON beacon_deliveries (state, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_beacon_deliveries_endpoint ON beacon_deliveries (endpoint_id, state);
CREATE INDEX IF NOT EXISTS idx_beacon_deliveries_event ON beacon_deliveries (event_id);

CREATE TABLE IF NOT EXISTS beacon_attempts (
    id             TEXT PRIMARY KEY,
    delivery_id    TEXT NOT NULL,
    endpoint_id    TEXT NOT NULL DEFAULT '',
    attempt_number INTEGER NOT NULL,
    status_code    INTEGER NOT NULL DEFAULT 0,
    error          TEXT NOT NULL DEFAULT '',
    error_kind     TEXT NOT NULL DEFAULT '',
    latency_ms     INTEGER NOT NULL DEFAULT 0,
    attempted_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_beacon_attempts_delivery ON beacon_attempts (delivery_id, attempt_number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS beacon_attempts;
DROP TABLE IF EXISTS beacon_deliveries;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_workflows",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_workflows (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    steps              TEXT NOT NULL DEFAULT '[]',
    trigger_type       TEXT NOT NULL DEFAULT 'manual',
    trigger_event_type TEXT NOT NULL DEFAULT '',
    audience           TEXT NOT NULL DEFAULT '[]',
    status             TEXT NOT NULL DEFAULT 'draft',
    activated_at       TEXT,
    paused_at          TEXT,
    completed_at       TEXT,
    runs_started       INTEGER NOT NULL DEFAULT 0,
    runs_completed     INTEGER NOT NULL DEFAULT 0,
    runs_failed        INTEGER NOT NULL DEFAULT 0,
    runs_cancelled     INTEGER NOT NULL DEFAULT 0,
    metadata           TEXT NOT NULL DEFAULT '{}',
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_beacon_workflows_trigger ON beacon_workflows (status, trigger_type, trigger_event_type);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS beacon_workflows`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_runs",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_runs (
    id             TEXT PRIMARY KEY,
    workflow_id    TEXT NOT NULL,
    subject_id     TEXT NOT NULL,
    current_step   INTEGER NOT NULL DEFAULT 0,
    variables      TEXT NOT NULL DEFAULT '{}',
    status         TEXT NOT NULL DEFAULT 'started',
    trigger_source TEXT NOT NULL DEFAULT 'manual',
    event_id       TEXT NOT NULL DEFAULT '',
    started_at     TEXT NOT NULL,
    completed_at   TEXT,
    error          TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_beacon_runs_workflow ON beacon_runs (workflow_id, status);
CREATE INDEX IF NOT EXISTS idx_beacon_runs_subject ON beacon_runs (subject_id);

CREATE TABLE IF NOT EXISTS beacon_step_logs (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    step_index  INTEGER NOT NULL,
    kind        TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    input       TEXT NOT NULL DEFAULT '{}',
    output      TEXT NOT NULL DEFAULT '{}',
    branch_path TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_beacon_step_logs_run ON beacon_step_logs (run_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS beacon_step_logs;
DROP TABLE IF EXISTS beacon_runs;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_subjects",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_subjects (
    id         TEXT PRIMARY KEY,
    fields     TEXT NOT NULL DEFAULT '{}',
    tags       TEXT NOT NULL DEFAULT '[]',
    score      REAL NOT NULL DEFAULT 0,
    segments   TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS beacon_tasks (
    id          TEXT PRIMARY KEY,
    subject_id  TEXT NOT NULL,
    run_id      TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    assignee    TEXT NOT NULL DEFAULT '',
    due_at      TEXT,
    done        INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_beacon_tasks_subject ON beacon_tasks (subject_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS beacon_tasks;
DROP TABLE IF EXISTS beacon_subjects;
`)
				return err
			},
		},
	)
}
